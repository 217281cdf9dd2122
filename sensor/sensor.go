// Package sensor defines simulated sensors that are updated by the simulation clock and
// publish their readings on the transport bus.
package sensor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/spatialmath"
	"github.com/robosim/sensors/transport"
)

var (
	// ErrNotInitialized is returned by Update before Load succeeded.
	ErrNotInitialized = errors.New("sensor is not initialized")
	// ErrNoCamera is returned by Update when there is no rendering camera, usually because no
	// scene has been set.
	ErrNoCamera = errors.New("sensor has no rendering camera")
	// ErrInvalidHFOV is returned for a horizontal field of view outside [MinHFOV, MaxHFOV].
	ErrInvalidHFOV = errors.New("horizontal field of view out of range")
)

// Accepted horizontal field of view range in radians.
const (
	MinHFOV = 0.01
	MaxHFOV = 2 * math.Pi
)

// A Sensor produces data each time the simulation advances past its next update time.
type Sensor interface {
	Name() string
	Type() string
	// Topic is the fully qualified topic the sensor publishes its data on.
	Topic() string
	Pose() spatialmath.Pose
	SetPose(pose spatialmath.Pose)
	UpdateRate() float64
	SetUpdateRate(hz float64)
	// NextDataUpdateTime is the simulation time at which the sensor is next due.
	NextDataUpdateTime() time.Duration
	// Load configures the sensor. It must be called once before Update.
	Load(ctx context.Context, cfg config.Sensor) error
	// Update produces and publishes data for simulation time now.
	Update(ctx context.Context, now time.Duration) error
	Close(ctx context.Context) error
}

// A RenderingSensor draws its data with a rendering scene.
type RenderingSensor interface {
	Sensor
	Scene() rendering.Scene
	// SetScene replaces the scene. Resources held in the old scene are released and, when
	// the sensor is loaded, recreated in the new one.
	SetScene(scene rendering.Scene)
}

// Dependencies are handed to sensor constructors.
type Dependencies struct {
	Bus    *transport.Bus
	Scene  rendering.Scene
	Logger logging.Logger
}

// Base implements the bookkeeping shared by every sensor. Embedders call Load from their own
// Load.
type Base struct {
	mu          sync.RWMutex
	name        string
	typ         string
	topic       string
	pose        spatialmath.Pose
	updateRate  float64
	nextUpdate  time.Duration
	initialized bool

	bus    *transport.Bus
	node   *transport.Node
	logger logging.Logger
}

// NewBase returns an unloaded base that will publish on bus. A nil bus means the default bus.
func NewBase(bus *transport.Bus, logger logging.Logger) Base {
	if bus == nil {
		bus = transport.DefaultBus()
	}
	return Base{bus: bus, logger: logger, pose: spatialmath.NewZeroPose()}
}

// Load reads the fields shared by every sensor and creates the transport node.
func (b *Base) Load(cfg config.Sensor) error {
	if err := cfg.Validate("sensor"); err != nil {
		return err
	}
	topic := cfg.Topic
	if topic == "" {
		topic = transport.Sep + cfg.Name
	}
	topic, err := transport.FullyQualifiedName("", topic)
	if err != nil {
		return errors.Wrapf(err, "sensor %s", cfg.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.node == nil {
		node, err := b.bus.NewNode("")
		if err != nil {
			return err
		}
		b.node = node
	}
	b.name = cfg.Name
	b.typ = cfg.Type
	b.topic = topic
	b.pose = cfg.Pose
	b.updateRate = cfg.UpdateRate
	if b.logger != nil {
		b.logger = b.logger.Sublogger(cfg.Name)
	}
	return nil
}

// Name returns the sensor name.
func (b *Base) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// Type returns the configured sensor type.
func (b *Base) Type() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.typ
}

// Topic returns the topic the sensor publishes on.
func (b *Base) Topic() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.topic
}

// Pose returns the sensor pose in the world frame.
func (b *Base) Pose() spatialmath.Pose {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pose
}

// SetPose moves the sensor.
func (b *Base) SetPose(pose spatialmath.Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pose = pose
}

// UpdateRate returns the update rate in Hz. Zero means every tick.
func (b *Base) UpdateRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updateRate
}

// SetUpdateRate changes the update rate. Negative rates are treated as zero.
func (b *Base) SetUpdateRate(hz float64) {
	if hz < 0 {
		hz = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateRate = hz
}

// NextDataUpdateTime returns when the sensor is next due.
func (b *Base) NextDataUpdateTime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextUpdate
}

// IsDue reports whether the sensor should update at now.
func (b *Base) IsDue(now time.Duration) bool {
	return now >= b.NextDataUpdateTime()
}

// MarkUpdated records an update at now and schedules the next one one period later.
func (b *Base) MarkUpdated(now time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateRate <= 0 {
		b.nextUpdate = now
		return
	}
	b.nextUpdate = now + time.Duration(float64(time.Second)/b.updateRate)
}

// SetInitialized marks the sensor loaded.
func (b *Base) SetInitialized(initialized bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = initialized
}

// IsInitialized reports whether Load succeeded.
func (b *Base) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// Node returns the transport node, nil before Load.
func (b *Base) Node() *transport.Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.node
}

// Logger returns the sensor logger.
func (b *Base) Logger() logging.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger
}

// Close closes the transport node along with every publisher on it.
func (b *Base) Close() error {
	b.mu.Lock()
	node := b.node
	b.node = nil
	b.initialized = false
	b.mu.Unlock()
	if node == nil {
		return nil
	}
	return node.Close()
}

// ValidateHFOV returns ErrInvalidHFOV unless hfov is within [MinHFOV, MaxHFOV].
func ValidateHFOV(hfov float64) error {
	if hfov < MinHFOV || hfov > MaxHFOV {
		return errors.Wrapf(ErrInvalidHFOV, "got %v, want [%v, %v]", hfov, MinHFOV, MaxHFOV)
	}
	return nil
}

// ValidateRendererHFOV returns ErrInvalidHFOV when cam is a rendering.HFOVLimiter that
// cannot draw hfov.
func ValidateRendererHFOV(cam interface{}, hfov float64) error {
	limiter, ok := cam.(rendering.HFOVLimiter)
	if !ok || hfov < limiter.MaxHFOV() {
		return nil
	}
	return errors.Wrapf(ErrInvalidHFOV, "got %v, renderer draws less than %v", hfov, limiter.MaxHFOV())
}
