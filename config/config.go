// Package config defines the simulator configuration: the scene and the sensors placed in it.
package config

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/spatialmath"
)

// Sensor types understood by the built-in sensors.
const (
	SensorTypeCamera      = "camera"
	SensorTypeDepthCamera = "depth_camera"
	SensorTypeDepth       = "depth"
)

// Config is the top level configuration file.
type Config struct {
	Scene   SceneConfig                   `json:"scene"`
	Sensors []Sensor                      `json:"sensors"`
	Log     []logging.LoggerPatternConfig `json:"log,omitempty"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// Validate checks the scene and every sensor.
func (c *Config) Validate() error {
	if err := c.Scene.Validate("scene"); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for i := range c.Sensors {
		path := fmt.Sprintf("sensors.%d", i)
		if err := c.Sensors[i].Validate(path); err != nil {
			return err
		}
		if _, ok := seen[c.Sensors[i].Name]; ok {
			return goutils.NewConfigValidationError(path, errors.Errorf("duplicate sensor name %q", c.Sensors[i].Name))
		}
		seen[c.Sensors[i].Name] = struct{}{}
	}
	for i, lc := range c.Log {
		if !logging.ValidatePattern(lc.Pattern) {
			return goutils.NewConfigValidationError(fmt.Sprintf("log.%d", i), errors.Errorf("invalid pattern %q", lc.Pattern))
		}
	}
	return nil
}

// SceneConfig describes the objects the reference renderer draws.
type SceneConfig struct {
	Name       string   `json:"name"`
	Background string   `json:"background,omitempty"`
	Ambient    float64  `json:"ambient,omitempty"`
	Light      *Light   `json:"light,omitempty"`
	Objects    []Object `json:"objects,omitempty"`
}

// Validate checks colours, light and objects.
func (s *SceneConfig) Validate(path string) error {
	if s.Background != "" {
		if _, err := colorful.Hex(s.Background); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "background"))
		}
	}
	if s.Ambient < 0 || s.Ambient > 1 {
		return goutils.NewConfigValidationError(path, errors.Errorf("ambient must be in [0, 1], got %v", s.Ambient))
	}
	if s.Light != nil {
		if err := s.Light.Validate(path + ".light"); err != nil {
			return err
		}
	}
	for i := range s.Objects {
		if err := s.Objects[i].Validate(fmt.Sprintf("%s.objects.%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Light is a directional light.
type Light struct {
	Direction []float64 `json:"direction"`
	Intensity float64   `json:"intensity,omitempty"`
}

// Validate checks the light direction.
func (l *Light) Validate(path string) error {
	if len(l.Direction) != 3 {
		return goutils.NewConfigValidationFieldRequiredError(path, "direction")
	}
	if l.Direction[0] == 0 && l.Direction[1] == 0 && l.Direction[2] == 0 {
		return goutils.NewConfigValidationError(path, errors.New("direction must be non-zero"))
	}
	return nil
}

// Object types for scene objects.
const (
	ObjectSphere = "sphere"
	ObjectBox    = "box"
	ObjectPlane  = "plane"
)

// Object is a single shape in the scene.
type Object struct {
	Name   string           `json:"name"`
	Type   string           `json:"type"`
	Pose   spatialmath.Pose `json:"pose"`
	Color  string           `json:"color,omitempty"`
	Radius float64          `json:"radius,omitempty"`
	Size   []float64        `json:"size,omitempty"`
	Normal []float64        `json:"normal,omitempty"`
}

// Validate checks the shape parameters for the object type.
func (o *Object) Validate(path string) error {
	if o.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if o.Color != "" {
		if _, err := colorful.Hex(o.Color); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "color"))
		}
	}
	switch o.Type {
	case ObjectSphere:
		if o.Radius <= 0 {
			return goutils.NewConfigValidationError(path, errors.New("sphere radius must be positive"))
		}
	case ObjectBox:
		if len(o.Size) != 3 {
			return goutils.NewConfigValidationFieldRequiredError(path, "size")
		}
		for _, v := range o.Size {
			if v <= 0 {
				return goutils.NewConfigValidationError(path, errors.New("box size must be positive"))
			}
		}
	case ObjectPlane:
		if o.Normal != nil && len(o.Normal) != 3 {
			return goutils.NewConfigValidationError(path, errors.New("plane normal needs 3 elements"))
		}
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown object type %q", o.Type))
	}
	return nil
}

// Sensor is the common sensor element.
type Sensor struct {
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	Topic      string           `json:"topic,omitempty"`
	UpdateRate float64          `json:"update_rate,omitempty"`
	Pose       spatialmath.Pose `json:"pose"`
	Camera     *Camera          `json:"camera,omitempty"`
}

// Validate checks the sensor element. A missing camera block is reported at load time by the
// sensor itself.
func (s *Sensor) Validate(path string) error {
	if s.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if s.Type == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	}
	if s.UpdateRate < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("update_rate cannot be negative, got %v", s.UpdateRate))
	}
	if s.Camera != nil {
		return s.Camera.Validate(path + ".camera")
	}
	return nil
}

// Camera is the camera element shared by colour and depth cameras.
type Camera struct {
	Name          string      `json:"name,omitempty"`
	HorizontalFOV *float64    `json:"horizontal_fov,omitempty"`
	Image         *Image      `json:"image,omitempty"`
	Clip          *Clip       `json:"clip,omitempty"`
	Save          *Save       `json:"save,omitempty"`
	Distortion    *Distortion `json:"distortion,omitempty"`
	Lens          *Lens       `json:"lens,omitempty"`
	Noise         *Noise      `json:"noise,omitempty"`
	AntiAliasing  uint        `json:"anti_aliasing,omitempty"`
}

// Validate checks the numeric camera parameters. HFOV range is checked when the camera is
// created, where the renderer limits apply.
func (c *Camera) Validate(path string) error {
	if hfov := c.HorizontalFOV; hfov != nil && (*hfov < 0 || math.IsNaN(*hfov)) {
		return goutils.NewConfigValidationError(path, errors.Errorf("horizontal_fov cannot be negative, got %v", *hfov))
	}
	if c.Clip != nil {
		if c.Clip.Near < 0 || c.Clip.Far <= 0 || c.Clip.Near >= c.Clip.Far {
			return goutils.NewConfigValidationError(path,
				errors.Errorf("clip planes must satisfy 0 <= near < far, got near %v far %v", c.Clip.Near, c.Clip.Far))
		}
	}
	if c.Noise != nil && c.Noise.StdDev < 0 {
		return goutils.NewConfigValidationError(path, errors.New("noise stddev cannot be negative"))
	}
	if c.Save != nil && c.Save.Enabled && c.Save.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path+".save", "path")
	}
	return nil
}

// Image is the image element of a camera.
type Image struct {
	Width  uint   `json:"width,omitempty"`
	Height uint   `json:"height,omitempty"`
	Format string `json:"format,omitempty"`
}

// Clip holds the near and far clip planes in meters.
type Clip struct {
	Near float64 `json:"near"`
	Far  float64 `json:"far"`
}

// Save enables writing frames to disk.
type Save struct {
	Enabled  bool   `json:"enabled"`
	Path     string `json:"path"`
	Encoding string `json:"encoding,omitempty"`
	ColorMap string `json:"color_map,omitempty"`
}

// Distortion holds Brown-Conrady coefficients.
type Distortion struct {
	K1     float64   `json:"k1,omitempty"`
	K2     float64   `json:"k2,omitempty"`
	K3     float64   `json:"k3,omitempty"`
	P1     float64   `json:"p1,omitempty"`
	P2     float64   `json:"p2,omitempty"`
	Center []float64 `json:"center,omitempty"`
}

// Lens holds optional explicit intrinsics.
type Lens struct {
	Intrinsics *Intrinsics `json:"intrinsics,omitempty"`
}

// Intrinsics are pinhole parameters in pixels.
type Intrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
	S  float64 `json:"s,omitempty"`
}

// Noise configures a sensor noise model.
type Noise struct {
	Type       string  `json:"type"`
	Mean       float64 `json:"mean,omitempty"`
	StdDev     float64 `json:"stddev,omitempty"`
	BiasMean   float64 `json:"bias_mean,omitempty"`
	BiasStdDev float64 `json:"bias_stddev,omitempty"`
	Precision  float64 `json:"precision,omitempty"`
}
