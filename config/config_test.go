package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samber/lo"
	"go.viam.com/test"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/spatialmath"
)

const jsonConfig = `{
  "scene": {
    "name": "lab",
    "background": "#202020",
    "ambient": 0.2,
    "light": {"direction": [1, 0, -1]},
    "objects": [
      {"name": "ball", "type": "sphere", "pose": [3, 0, 0], "color": "#ff0000", "radius": 0.5},
      {"name": "floor", "type": "plane", "pose": "0 0 -1 0 0 0"}
    ]
  },
  "sensors": [
    {
      "name": "front",
      "type": "camera",
      "update_rate": 30,
      "pose": [0, 0, 0.5, 0, 0, 0],
      "camera": {
        "horizontal_fov": 1.2,
        "image": {"width": 64, "height": 48, "format": "R8G8B8"},
        "clip": {"near": 0.05, "far": 50},
        "save": {"enabled": true, "path": "${CAMSIM_TEST_DIR}/frames"},
        "distortion": {"k1": 0.1, "k2": -0.2, "p1": 0.01}
      }
    },
    {"name": "depth", "type": "depth_camera", "camera": {"image": {"width": 32, "height": 24}}}
  ],
  "log": [{"pattern": "camsim.*", "level": "debug"}]
}`

const yamlConfig = `
scene:
  name: lab
  objects:
    - name: box
      type: box
      pose: [2, 1, 0]
      size: [1, 1, 1]
sensors:
  - name: front
    type: camera
    pose: "1 2 3 0 0 0"
    camera:
      image:
        width: 16
        height: 8
      noise:
        type: gaussian
        stddev: 0.01
`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestReadJSON(t *testing.T) {
	t.Setenv("CAMSIM_TEST_DIR", "/tmp/camsim")
	path := writeFile(t, "sim.json", jsonConfig)

	cfg, err := Read(context.Background(), path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Scene.Objects, test.ShouldHaveLength, 2)
	test.That(t, cfg.Scene.Objects[0].Pose.Point.X, test.ShouldEqual, 3)
	test.That(t, cfg.Scene.Objects[1].Pose.Point.Z, test.ShouldEqual, -1)
	test.That(t, cfg.Log, test.ShouldResemble, []logging.LoggerPatternConfig{{Pattern: "camsim.*", Level: "debug"}})

	test.That(t, cfg.Sensors, test.ShouldHaveLength, 2)
	front := cfg.Sensors[0]
	test.That(t, front.UpdateRate, test.ShouldEqual, 30)
	test.That(t, front.Pose.Point.Z, test.ShouldEqual, 0.5)
	test.That(t, front.Camera.HFOV(), test.ShouldEqual, 1.2)
	test.That(t, front.Camera.Save.Path, test.ShouldEqual, "/tmp/camsim/frames")
	test.That(t, front.Camera.ClipOrDefault(DefaultNearClip, DefaultFarClip), test.ShouldResemble, Clip{Near: 0.05, Far: 50})
	test.That(t, front.Camera.DistortionOrZero().K1, test.ShouldEqual, 0.1)

	depth := cfg.Sensors[1]
	test.That(t, depth.Camera.ImageOrDefault(DefaultDepthFormat), test.ShouldResemble, Image{Width: 32, Height: 24, Format: "R_FLOAT32"})
	test.That(t, depth.Camera.ClipOrDefault(DefaultDepthNearClip, DefaultDepthFarClip), test.ShouldResemble, Clip{Near: 0.3, Far: 100})
}

func TestReadYAML(t *testing.T) {
	path := writeFile(t, "sim.yaml", yamlConfig)
	cfg, err := Read(context.Background(), path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Scene.Objects[0].Size, test.ShouldResemble, []float64{1, 1, 1})
	test.That(t, spatialmath.PoseAlmostEqual(cfg.Sensors[0].Pose, spatialmath.NewPoseFromRPY(1, 2, 3, 0, 0, 0)), test.ShouldBeTrue)
	test.That(t, cfg.Sensors[0].Camera.Noise.Type, test.ShouldEqual, "gaussian")
	test.That(t, cfg.Sensors[0].Camera.ImageOrDefault(DefaultImageFormat).Format, test.ShouldEqual, "R8G8B8")

	scene, err := ReadScene(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scene.Name, test.ShouldEqual, "lab")
}

func TestReadRejectsBadConfigs(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for name, tc := range map[string]struct {
		file, contents, errContains string
	}{
		"unknown key":      {"a.json", `{"sensors": [{"name": "a", "type": "camera", "bogus": 1}]}`, "bogus"},
		"missing name":     {"a.json", `{"sensors": [{"type": "camera"}]}`, "name"},
		"duplicate sensor": {"a.json", `{"sensors": [{"name": "a", "type": "camera"}, {"name": "a", "type": "camera"}]}`, "duplicate"},
		"bad clip":         {"a.json", `{"sensors": [{"name": "a", "type": "camera", "camera": {"clip": {"near": 5, "far": 1}}}]}`, "clip"},
		"bad pose":         {"a.json", `{"sensors": [{"name": "a", "type": "camera", "pose": [1, 2]}]}`, "3 or 6"},
		"bad color":        {"a.json", `{"scene": {"objects": [{"name": "b", "type": "sphere", "radius": 1, "color": "red"}]}}`, "color"},
		"unknown object":   {"a.json", `{"scene": {"objects": [{"name": "b", "type": "cone"}]}}`, "cone"},
		"bad log pattern":  {"a.json", `{"log": [{"pattern": "a..b", "level": "info"}]}`, "pattern"},
		"malformed yaml":   {"a.yml", "sensors: [", "yaml"},
		"malformed json":   {"a.json", "{", "json"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromReader(context.Background(), tc.file, strings.NewReader(tc.contents), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errContains)
		})
	}
}

func TestCameraDefaults(t *testing.T) {
	var cam *Camera
	test.That(t, cam.HFOV(), test.ShouldEqual, DefaultHorizontalFOV)
	test.That(t, cam.ImageOrDefault(DefaultImageFormat), test.ShouldResemble, Image{Width: 320, Height: 240, Format: "R8G8B8"})

	in := cam.LensIntrinsics(320, 240)
	test.That(t, in.Cx, test.ShouldEqual, 160)
	test.That(t, in.Cy, test.ShouldEqual, 120)
	test.That(t, in.Fx, test.ShouldAlmostEqual, 277.1, 0.1)
	test.That(t, in.Fy, test.ShouldEqual, in.Fx)

	explicit := &Camera{Lens: &Lens{Intrinsics: &Intrinsics{Fx: 1, Fy: 2, Cx: 3, Cy: 4}}}
	test.That(t, explicit.LensIntrinsics(10, 10), test.ShouldResemble, Intrinsics{Fx: 1, Fy: 2, Cx: 3, Cy: 4})
}

func TestExplicitZeroHFOV(t *testing.T) {
	var cam Camera
	test.That(t, decodeInto(map[string]interface{}{"horizontal_fov": 0}, &cam), test.ShouldBeNil)
	test.That(t, cam.HorizontalFOV, test.ShouldNotBeNil)
	test.That(t, cam.HFOV(), test.ShouldEqual, 0)
	test.That(t, cam.Validate("camera"), test.ShouldBeNil)

	unset := &Camera{}
	test.That(t, unset.HFOV(), test.ShouldEqual, DefaultHorizontalFOV)

	negative := &Camera{HorizontalFOV: lo.ToPtr(-0.5)}
	test.That(t, negative.Validate("camera"), test.ShouldNotBeNil)
}
