package raster

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/spatialmath"
)

func wallScene(t *testing.T) *Scene {
	t.Helper()
	s := NewScene("test", logging.NewTestLogger(t))
	red, err := colorful.Hex("#ff0000")
	test.That(t, err, test.ShouldBeNil)
	err = s.AddObject(Object{
		Name:  "wall",
		Shape: Plane{Point: r3.Vector{X: 5}, Normal: r3.Vector{X: -1}},
		Color: red,
	})
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestShapes(t *testing.T) {
	origin := r3.Vector{}
	fwd := r3.Vector{X: 1}

	t.Run("sphere", func(t *testing.T) {
		h, ok := Sphere{Center: r3.Vector{X: 4}, Radius: 1}.Hit(origin, fwd, 0, 100)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, h.T, test.ShouldAlmostEqual, 3)
		test.That(t, h.Normal.X, test.ShouldAlmostEqual, -1)

		_, ok = Sphere{Center: r3.Vector{X: 4}, Radius: 1}.Hit(origin, fwd, 0, 2)
		test.That(t, ok, test.ShouldBeFalse)
		_, ok = Sphere{Center: r3.Vector{Y: 4}, Radius: 1}.Hit(origin, fwd, 0, 100)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("sphere from inside", func(t *testing.T) {
		h, ok := Sphere{Radius: 2}.Hit(origin, fwd, 0.01, 100)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, h.T, test.ShouldAlmostEqual, 2)
	})

	t.Run("plane", func(t *testing.T) {
		h, ok := Plane{Point: r3.Vector{X: 2}, Normal: r3.Vector{X: -3}}.Hit(origin, r3.Vector{X: 2}, 0, 100)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, h.T, test.ShouldAlmostEqual, 1)
		_, ok = Plane{Point: r3.Vector{X: 2}, Normal: r3.Vector{Z: 1}}.Hit(origin, fwd, 0, 100)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("box", func(t *testing.T) {
		b := Box{Pose: spatialmath.NewPose(r3.Vector{X: 5}, spatialmath.QuatFromRPY(0, 0, 0)), Size: r3.Vector{X: 2, Y: 2, Z: 2}}
		h, ok := b.Hit(origin, fwd, 0, 100)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, h.T, test.ShouldAlmostEqual, 4)
		test.That(t, h.Normal.X, test.ShouldAlmostEqual, -1)

		_, ok = b.Hit(origin, r3.Vector{Y: 1}, 0, 100)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("rotated box", func(t *testing.T) {
		b := Box{Pose: spatialmath.NewPoseFromRPY(5, 0, 0, 0, 0, math.Pi/4), Size: r3.Vector{X: 2, Y: 2, Z: 2}}
		h, ok := b.Hit(origin, fwd, 0, 100)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, h.T, test.ShouldAlmostEqual, 5-math.Sqrt2, 1e-9)
	})
}

func TestVisualChildren(t *testing.T) {
	s := NewScene("test", logging.NewTestLogger(t))
	cam, err := s.CreateCamera("cam")
	test.That(t, err, test.ShouldBeNil)

	parent := NewVisual("link")
	parent.SetLocalPose(spatialmath.NewPose(r3.Vector{Z: 1}, spatialmath.QuatFromRPY(0, 0, 0)))
	parent.AddChild(cam)
	test.That(t, parent.HasChild(cam), test.ShouldBeTrue)
	test.That(t, parent.ChildNames(), test.ShouldResemble, []string{"cam"})

	cam.SetLocalPose(spatialmath.NewPose(r3.Vector{X: 2}, spatialmath.QuatFromRPY(0, 0, 0)))
	world := cam.(*Camera).WorldPose()
	test.That(t, world.Point.X, test.ShouldAlmostEqual, 2)
	test.That(t, world.Point.Z, test.ShouldAlmostEqual, 1)

	parent.RemoveChild(cam)
	test.That(t, parent.ChildCount(), test.ShouldEqual, 0)
	test.That(t, cam.(*Camera).WorldPose().Point.Z, test.ShouldAlmostEqual, 0)
}

func TestSceneSensors(t *testing.T) {
	s := NewScene("test", logging.NewTestLogger(t))
	cam, err := s.CreateCamera("a")
	test.That(t, err, test.ShouldBeNil)
	_, err = s.CreateDepthCamera("a")
	test.That(t, err, test.ShouldBeError)
	test.That(t, s.SensorNames(), test.ShouldResemble, []string{"a"})

	s.RootVisual().AddChild(cam)
	test.That(t, s.DestroySensor(cam), test.ShouldBeNil)
	test.That(t, s.RootVisual().HasChild(cam), test.ShouldBeFalse)
	test.That(t, s.SensorNames(), test.ShouldBeEmpty)

	err = s.DestroySensor(cam)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, rendering.ErrUnknownNode.Error())

	test.That(t, s.AddObject(Object{Name: "x", Shape: Sphere{Radius: 1}}), test.ShouldBeNil)
	test.That(t, s.AddObject(Object{Name: "x", Shape: Sphere{Radius: 1}}), test.ShouldNotBeNil)
	test.That(t, s.RemoveObject("x"), test.ShouldBeTrue)
	test.That(t, s.RemoveObject("x"), test.ShouldBeFalse)
}

func TestSceneFromConfig(t *testing.T) {
	cfg := config.SceneConfig{
		Name:       "room",
		Background: "#102030",
		Objects: []config.Object{
			{Name: "ball", Type: config.ObjectSphere, Radius: 0.5, Pose: spatialmath.NewPose(r3.Vector{X: 3}, spatialmath.QuatFromRPY(0, 0, 0))},
			{Name: "crate", Type: config.ObjectBox, Size: []float64{1, 1, 1}, Pose: spatialmath.NewZeroPose()},
			{Name: "floor", Type: config.ObjectPlane, Pose: spatialmath.NewPose(r3.Vector{Z: -1}, spatialmath.QuatFromRPY(0, 0, 0))},
		},
	}
	s, err := NewSceneFromConfig(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Name(), test.ShouldEqual, "room")
	test.That(t, s.ObjectNames(), test.ShouldResemble, []string{"ball", "crate", "floor"})
}

func TestCameraRender(t *testing.T) {
	s := wallScene(t)
	c, err := s.CreateCamera("cam")
	test.That(t, err, test.ShouldBeNil)
	c.SetImageWidth(8)
	c.SetImageHeight(6)
	c.SetAspectRatio(8.0 / 6.0)

	t.Run("rgb", func(t *testing.T) {
		img := c.CreateImage()
		test.That(t, img.MemorySize(), test.ShouldEqual, 8*6*3)
		test.That(t, c.Capture(img), test.ShouldBeNil)
		data := img.Data()
		// the wall faces the camera, red dominates every pixel
		for i := 0; i < len(data); i += 3 {
			test.That(t, data[i], test.ShouldBeGreaterThan, data[i+1])
			test.That(t, data[i], test.ShouldBeGreaterThan, data[i+2])
		}
	})

	t.Run("bgr swaps channels", func(t *testing.T) {
		c.SetImageFormat(rendering.PFB8G8R8)
		defer c.SetImageFormat(rendering.PFR8G8B8)
		img := c.CreateImage()
		test.That(t, c.Capture(img), test.ShouldBeNil)
		test.That(t, img.Data()[2], test.ShouldBeGreaterThan, img.Data()[0])
	})

	t.Run("unsupported format renders zeros", func(t *testing.T) {
		c.SetImageFormat(rendering.PFBayerRGGB8)
		defer c.SetImageFormat(rendering.PFR8G8B8)
		img := c.CreateImage()
		test.That(t, c.Capture(img), test.ShouldBeNil)
		for _, b := range img.Data() {
			test.That(t, b, test.ShouldEqual, 0)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		img := rendering.NewImage(4, 4, rendering.PFR8G8B8)
		test.That(t, c.Capture(img), test.ShouldNotBeNil)
	})

	t.Run("looking away sees background", func(t *testing.T) {
		c.SetLocalPose(spatialmath.NewPoseFromRPY(0, 0, 0, 0, 0, math.Pi))
		defer c.SetLocalPose(spatialmath.NewZeroPose())
		img := c.CreateImage()
		test.That(t, c.Capture(img), test.ShouldBeNil)
		for _, b := range img.Data() {
			test.That(t, b, test.ShouldEqual, 0)
		}
	})

	t.Run("lens distortion is applied", func(t *testing.T) {
		var calls atomic.Int64
		c.(rendering.LensDistorter).SetLensDistortion(func(x, y float64) (float64, float64) {
			calls.Add(1)
			return x, y
		})
		defer c.(rendering.LensDistorter).SetLensDistortion(nil)
		test.That(t, c.Update(), test.ShouldBeNil)
		test.That(t, calls.Load(), test.ShouldEqual, 48)
	})

	t.Run("zero fov fails", func(t *testing.T) {
		c.SetHFOV(0)
		defer c.SetHFOV(math.Pi / 2)
		test.That(t, c.Update(), test.ShouldNotBeNil)
	})
}

func TestDepthCamera(t *testing.T) {
	s := wallScene(t)
	s.SetWorkers(2)
	d, err := s.CreateDepthCamera("depth")
	test.That(t, err, test.ShouldBeNil)
	d.SetImageWidth(4)
	d.SetImageHeight(2)
	d.SetAspectRatio(2)
	test.That(t, d.ImageFormat(), test.ShouldEqual, rendering.PFFloat32R)

	test.That(t, d.Update(), test.ShouldNotBeNil)
	test.That(t, d.CreateDepthTexture(), test.ShouldBeNil)

	var frames []rendering.DepthFrame
	conn := d.ConnectNewDepthFrame(func(f rendering.DepthFrame) {
		f.Data = append([]float32(nil), f.Data...)
		frames = append(frames, f)
	})
	test.That(t, d.Update(), test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 1)
	test.That(t, frames[0].Width, test.ShouldEqual, 4)
	test.That(t, frames[0].Height, test.ShouldEqual, 2)
	test.That(t, frames[0].Channels, test.ShouldEqual, 1)
	for _, v := range frames[0].Data {
		// depth along the optical axis, not ray length
		test.That(t, v, test.ShouldAlmostEqual, 5, 1e-4)
	}
	test.That(t, d.DepthData(), test.ShouldResemble, frames[0].Data)

	img := d.CreateImage()
	test.That(t, d.Capture(img), test.ShouldBeNil)
	test.That(t, img.Float32Data()[0], test.ShouldAlmostEqual, 5, 1e-4)
	test.That(t, frames, test.ShouldHaveLength, 2)

	conn.Disconnect()
	d.SetFarClipPlane(3)
	test.That(t, d.Update(), test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 2)
	for _, v := range d.DepthData() {
		test.That(t, math.IsInf(float64(v), 1), test.ShouldBeTrue)
	}
}

func TestDepthHandlerPanic(t *testing.T) {
	s := wallScene(t)
	d, err := s.CreateDepthCamera("depth")
	test.That(t, err, test.ShouldBeNil)
	d.SetImageWidth(2)
	d.SetImageHeight(2)
	test.That(t, d.CreateDepthTexture(), test.ShouldBeNil)

	var got int
	d.ConnectNewDepthFrame(func(rendering.DepthFrame) { panic("boom") })
	d.ConnectNewDepthFrame(func(rendering.DepthFrame) { got++ })
	err = d.Update()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
	test.That(t, got, test.ShouldEqual, 1)
}
