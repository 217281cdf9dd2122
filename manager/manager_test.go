package manager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/msgs"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/sensor"
	_ "github.com/robosim/sensors/sensor/camera"
	_ "github.com/robosim/sensors/sensor/depthcamera"
	tu "github.com/robosim/sensors/testutils"
	"github.com/robosim/sensors/transport"
)

func sensorConfigs() []config.Sensor {
	img := &config.Image{Width: 8, Height: 6}
	return []config.Sensor{
		{Name: "rgb", Type: config.SensorTypeCamera, Camera: &config.Camera{Image: img}},
		{Name: "depth", Type: config.SensorTypeDepth, UpdateRate: 10, Camera: &config.Camera{Image: img}},
	}
}

func newManager(t *testing.T, opts Options) (*Manager, *transport.Bus) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	bus := transport.NewBus(logger, transport.WithQueueSize(32))
	m := New(bus, logger, opts)
	t.Cleanup(func() {
		test.That(t, m.Close(context.Background()), test.ShouldBeNil)
	})
	return m, bus
}

func TestCreateSensors(t *testing.T) {
	m, _ := newManager(t, Options{Scene: tu.NewWallScene(t, "scene")})
	ctx := context.Background()
	test.That(t, m.CreateSensors(ctx, sensorConfigs()), test.ShouldBeNil)

	names := []string{}
	for _, s := range m.Sensors() {
		names = append(names, s.Name())
	}
	test.That(t, names, test.ShouldResemble, []string{"depth", "rgb"})

	s, ok := m.Sensor("rgb")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Topic(), test.ShouldEqual, "/rgb")
	_, ok = m.Sensor("missing")
	test.That(t, ok, test.ShouldBeFalse)

	_, err := m.CreateSensor(ctx, sensorConfigs()[0])
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, ErrDuplicateSensor.Error())

	_, err = m.CreateSensor(ctx, config.Sensor{Name: "lidar", Type: "gpu_lidar"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown sensor type")

	_, err = m.CreateSensor(ctx, config.Sensor{Name: "broken", Type: config.SensorTypeCamera})
	test.That(t, err, test.ShouldNotBeNil)
	_, ok = m.Sensor("broken")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, m.Remove(ctx, "rgb"), test.ShouldBeNil)
	test.That(t, m.Remove(ctx, "rgb"), test.ShouldNotBeNil)
	test.That(t, m.Sensors(), test.ShouldHaveLength, 1)
}

func TestRunOnceSchedules(t *testing.T) {
	m, bus := newManager(t, Options{Scene: tu.NewWallScene(t, "scene"), Workers: 2})
	ctx := context.Background()
	test.That(t, m.CreateSensors(ctx, sensorConfigs()), test.ShouldBeNil)

	node, err := bus.NewNode("")
	test.That(t, err, test.ShouldBeNil)
	defer node.Close()
	var rgbCount, depthCount atomic.Int64
	_, err = transport.Subscribe(node, "/rgb", func(*msgs.Image) { rgbCount.Add(1) })
	test.That(t, err, test.ShouldBeNil)
	_, err = transport.Subscribe(node, "/depth", func(*msgs.Image) { depthCount.Add(1) })
	test.That(t, err, test.ShouldBeNil)

	// the camera updates every tick, the depth camera at 10 Hz
	for now := time.Duration(0); now <= 100*time.Millisecond; now += 10 * time.Millisecond {
		test.That(t, m.RunOnce(ctx, now, false), test.ShouldBeNil)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, rgbCount.Load(), test.ShouldEqual, 11)
		test.That(tb, depthCount.Load(), test.ShouldEqual, 2)
	})

	depth, _ := m.Sensor("depth")
	test.That(t, depth.NextDataUpdateTime(), test.ShouldEqual, 200*time.Millisecond)
	test.That(t, m.RunOnce(ctx, 110*time.Millisecond, true), test.ShouldBeNil)
	test.That(t, depth.NextDataUpdateTime(), test.ShouldEqual, 210*time.Millisecond)
}

func TestRunOnceCombinesErrors(t *testing.T) {
	m, _ := newManager(t, Options{})
	ctx := context.Background()
	test.That(t, m.CreateSensors(ctx, sensorConfigs()), test.ShouldBeNil)

	err := m.RunOnce(ctx, 0, false)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "updating sensor rgb")
	test.That(t, err.Error(), test.ShouldContainSubstring, "updating sensor depth")
	test.That(t, err.Error(), test.ShouldContainSubstring, sensor.ErrNoCamera.Error())
}

func TestSetSceneBroadcast(t *testing.T) {
	m, _ := newManager(t, Options{})
	ctx := context.Background()
	test.That(t, m.CreateSensors(ctx, sensorConfigs()), test.ShouldBeNil)

	var seen []rendering.Scene
	conn := m.ConnectSceneChange(func(s rendering.Scene) { seen = append(seen, s) })
	defer conn.Disconnect()

	scene := tu.NewWallScene(t, "scene")
	m.SetScene(scene)
	test.That(t, m.Scene() == rendering.Scene(scene), test.ShouldBeTrue)
	test.That(t, seen, test.ShouldHaveLength, 1)
	test.That(t, scene.SensorNames(), test.ShouldResemble, []string{"depth", "rgb"})
	test.That(t, m.RunOnce(ctx, 0, true), test.ShouldBeNil)

	// sensors created afterwards start in the current scene
	_, err := m.CreateSensor(ctx, config.Sensor{
		Name: "late", Type: config.SensorTypeCamera, Camera: &config.Camera{Image: &config.Image{Width: 4, Height: 4}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scene.SensorNames(), test.ShouldResemble, []string{"depth", "late", "rgb"})

	test.That(t, m.Remove(ctx, "late"), test.ShouldBeNil)
	other := tu.NewWallScene(t, "other")
	m.SetScene(other)
	test.That(t, scene.SensorNames(), test.ShouldBeEmpty)
	test.That(t, other.SensorNames(), test.ShouldResemble, []string{"depth", "rgb"})
}

func TestRun(t *testing.T) {
	mock := clock.NewMock()
	m, _ := newManager(t, Options{Scene: tu.NewWallScene(t, "scene"), Clock: mock})
	test.That(t, m.CreateSensors(context.Background(), sensorConfigs()), test.ShouldBeNil)

	test.That(t, m.Run(context.Background(), 0), test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, 10*time.Millisecond)
	}()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		mock.Add(10 * time.Millisecond)
		test.That(tb, m.SimTime(), test.ShouldBeGreaterThanOrEqualTo, 30*time.Millisecond)
	})
	rgb, _ := m.Sensor("rgb")
	test.That(t, rgb.NextDataUpdateTime(), test.ShouldBeGreaterThan, 0)

	cancel()
	test.That(t, <-done, test.ShouldEqual, context.Canceled)
}
