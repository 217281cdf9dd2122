// Package manager owns a set of simulated sensors. It creates them from configuration, hands
// them the current scene and updates the ones that are due as simulation time advances.
package manager

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/event"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/sensor"
	"github.com/robosim/sensors/transport"
)

// ErrDuplicateSensor is returned when creating a sensor whose name is already taken.
var ErrDuplicateSensor = errors.New("sensor already exists")

// Options configure a Manager. The zero value is usable.
type Options struct {
	// Workers bounds how many sensors update in parallel. Defaults to GOMAXPROCS.
	Workers int
	// Clock drives Run. Defaults to the wall clock.
	Clock clock.Clock
	// Scene is the initial scene handed to rendering sensors.
	Scene rendering.Scene
}

type entry struct {
	sensor    sensor.Sensor
	sceneConn *event.Connection
}

// Manager creates, updates and closes sensors.
type Manager struct {
	bus     *transport.Bus
	logger  logging.Logger
	clock   clock.Clock
	workers int

	mu      sync.Mutex
	sensors map[string]*entry
	scene   rendering.Scene
	simTime time.Duration

	sceneChanged event.Event[rendering.Scene]
}

// New returns an empty manager publishing on bus.
func New(bus *transport.Bus, logger logging.Logger, opts Options) *Manager {
	if bus == nil {
		bus = transport.DefaultBus()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Manager{
		bus:     bus,
		logger:  logger,
		clock:   opts.Clock,
		workers: opts.Workers,
		sensors: map[string]*entry{},
		scene:   opts.Scene,
	}
}

// CreateSensor builds, loads and registers the sensor described by cfg.
func (m *Manager) CreateSensor(ctx context.Context, cfg config.Sensor) (sensor.Sensor, error) {
	reg, ok := sensor.Lookup(cfg.Type)
	if !ok {
		return nil, errors.Errorf("unknown sensor type %q for sensor %s, known types are %v", cfg.Type, cfg.Name, sensor.RegisteredTypes())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sensors[cfg.Name]; ok {
		return nil, errors.Wrap(ErrDuplicateSensor, cfg.Name)
	}

	s, err := reg.Constructor(sensor.Dependencies{
		Bus:    m.bus,
		Scene:  m.scene,
		Logger: m.logger.Sublogger("sensor"),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "constructing sensor %s", cfg.Name)
	}
	if err := s.Load(ctx, cfg); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "loading sensor %s", cfg.Name), s.Close(ctx))
	}

	e := &entry{sensor: s}
	if rs, ok := s.(sensor.RenderingSensor); ok {
		// the constructor already saw m.scene
		e.sceneConn = m.sceneChanged.Connect(rs.SetScene)
	}
	m.sensors[cfg.Name] = e
	m.logger.CDebugw(ctx, "created sensor", "name", cfg.Name, "type", cfg.Type, "topic", s.Topic())
	return s, nil
}

// CreateSensors creates every sensor in cfgs, continuing past failures.
func (m *Manager) CreateSensors(ctx context.Context, cfgs []config.Sensor) error {
	var errs error
	for _, cfg := range cfgs {
		if _, err := m.CreateSensor(ctx, cfg); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Sensor returns the named sensor.
func (m *Manager) Sensor(name string) (sensor.Sensor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sensors[name]
	if !ok {
		return nil, false
	}
	return e.sensor, true
}

// Sensors returns every sensor, sorted by name.
func (m *Manager) Sensors() []sensor.Sensor {
	m.mu.Lock()
	names := lo.Keys(m.sensors)
	sort.Strings(names)
	out := lo.Map(names, func(name string, _ int) sensor.Sensor { return m.sensors[name].sensor })
	m.mu.Unlock()
	return out
}

// Remove closes and forgets the named sensor.
func (m *Manager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	e, ok := m.sensors[name]
	delete(m.sensors, name)
	m.mu.Unlock()
	if !ok {
		return errors.Errorf("no sensor named %s", name)
	}
	e.sceneConn.Disconnect()
	return e.sensor.Close(ctx)
}

// Scene returns the current scene.
func (m *Manager) Scene() rendering.Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scene
}

// SetScene makes scene current and hands it to every rendering sensor.
func (m *Manager) SetScene(scene rendering.Scene) {
	m.mu.Lock()
	m.scene = scene
	m.mu.Unlock()
	if err := m.sceneChanged.Signal(scene); err != nil {
		m.logger.Errorw("scene change handler failed", "error", err)
	}
}

// ConnectSceneChange registers fn to be called after every SetScene.
func (m *Manager) ConnectSceneChange(fn func(rendering.Scene)) *event.Connection {
	return m.sceneChanged.Connect(fn)
}

// SimTime returns the simulation time reached by Run.
func (m *Manager) SimTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.simTime
}

// RunOnce updates, in parallel, every sensor due at now, or every sensor when force is set.
// Failures do not stop the other sensors and are returned together.
func (m *Manager) RunOnce(ctx context.Context, now time.Duration, force bool) error {
	due := lo.Filter(m.Sensors(), func(s sensor.Sensor, _ int) bool {
		return force || now >= s.NextDataUpdateTime()
	})
	if len(due) == 0 {
		return nil
	}

	var (
		errMu sync.Mutex
		errs  error
	)
	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, s := range due {
		s := s
		g.Go(func() error {
			if err := s.Update(ctx, now); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "updating sensor %s", s.Name()))
				errMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errs
}

// Run advances simulation time by step on every tick of the clock and updates the due
// sensors, until ctx is done. Update failures are logged.
func (m *Manager) Run(ctx context.Context, step time.Duration) error {
	if step <= 0 {
		return errors.Errorf("step must be positive, got %v", step)
	}
	ticker := m.clock.Ticker(step)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.mu.Lock()
			m.simTime += step
			now := m.simTime
			m.mu.Unlock()
			if err := m.RunOnce(ctx, now, false); err != nil {
				m.logger.Warnw("sensor update failed", "sim_time", now, "error", err)
			}
		}
	}
}

// Close closes every sensor.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	entries := lo.Values(m.sensors)
	m.sensors = map[string]*entry{}
	m.mu.Unlock()

	var errs error
	for _, e := range entries {
		e.sceneConn.Disconnect()
		errs = multierr.Append(errs, e.sensor.Close(ctx))
	}
	return errs
}
