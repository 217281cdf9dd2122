// Package depthcamera implements a simulated depth camera. Depth frames arrive from the
// renderer through a callback, are clipped to the configured range and published as
// R_FLOAT32 images.
package depthcamera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/event"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/msgs"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/rimage"
	"github.com/robosim/sensors/sensor"
	"github.com/robosim/sensors/transport"
)

func init() {
	reg := sensor.Registration{
		Constructor: func(deps sensor.Dependencies) (sensor.Sensor, error) {
			return New(deps), nil
		},
	}
	sensor.Register(config.SensorTypeDepthCamera, reg)
	sensor.Register(config.SensorTypeDepth, reg)
}

// Sensor is a simulated depth camera.
type Sensor struct {
	sensor.RenderingBase

	// mu serializes scene swaps, depth frames, message building and saves. The renderer is
	// driven without it since its frame callback takes it.
	mu     sync.Mutex
	cfg    config.Sensor
	logger logging.Logger

	camera    rendering.DepthCamera
	image     *rendering.Image
	frameConn *event.Connection
	pub       *transport.Publisher[*msgs.Image]
	near, far float64
	depth     []float32
	depthW    uint
	depthH    uint

	saveEnabled  bool
	savePath     string
	savePrefix   string
	saveEncoding rimage.Encoding
	saveColorMap rimage.ColorMap
	saveCounter  uint64

	imageEvent event.Event[*msgs.Image]
}

// New returns an unloaded depth camera sensor rendering into deps.Scene.
func New(deps sensor.Dependencies) *Sensor {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Global().Sublogger("depthcamera")
	}
	return &Sensor{
		RenderingBase: sensor.NewRenderingBase(deps.Bus, deps.Scene, logger),
		logger:        logger,
	}
}

// Load configures the sensor, advertises its topic and creates the depth camera when a scene
// is already set.
func (s *Sensor) Load(ctx context.Context, cfg config.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Camera == nil || cfg.Camera.Image == nil {
		err := errors.Errorf("depth camera sensor %s needs a camera element with an image element", cfg.Name)
		s.logger.Error(err)
		return err
	}
	if err := s.RenderingBase.Load(cfg); err != nil {
		return err
	}
	s.logger = s.RenderingBase.Logger()
	s.cfg = cfg

	pub, err := transport.Advertise[*msgs.Image](s.Node(), s.Topic())
	if err != nil {
		return errors.Wrap(err, "advertising depth image topic")
	}
	s.pub = pub

	if s.Scene() != nil {
		if err := s.createCamera(); err != nil {
			return err
		}
	}
	s.SetInitialized(true)
	s.logger.CDebugw(ctx, "loaded depth camera sensor", "topic", s.Topic())
	return nil
}

// CreateCamera creates the rendering depth camera in the current scene.
func (s *Sensor) CreateCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCamera()
}

func (s *Sensor) createCamera() error {
	scene := s.Scene()
	if scene == nil {
		return errors.Errorf("depth camera sensor %s has no scene", s.Name())
	}
	camCfg := s.cfg.Camera
	if camCfg == nil {
		return errors.Errorf("depth camera sensor %s has no camera element", s.Name())
	}
	img := camCfg.ImageOrDefault(config.DefaultDepthFormat)
	clip := camCfg.ClipOrDefault(config.DefaultDepthNearClip, config.DefaultDepthFarClip)
	hfov := camCfg.HFOV()
	if err := sensor.ValidateHFOV(hfov); err != nil {
		s.logger.Errorw("invalid horizontal field of view", "hfov", hfov)
		return err
	}
	s.near, s.far = clip.Near, clip.Far

	cam, err := scene.CreateDepthCamera(s.Name())
	if err != nil {
		s.logger.Errorw("cannot create rendering depth camera", "error", err)
		return err
	}
	if err := sensor.ValidateRendererHFOV(cam, hfov); err != nil {
		s.logger.Errorw("renderer cannot draw horizontal field of view", "hfov", hfov)
		if destroyErr := scene.DestroySensor(cam); destroyErr != nil {
			s.logger.Warnw("cannot destroy rendering depth camera", "error", destroyErr)
		}
		return err
	}
	cam.SetImageWidth(img.Width)
	cam.SetImageHeight(img.Height)
	// the near plane stays in the sensor so samples in front of it are reported as -Inf
	// instead of being clipped away by the renderer
	cam.SetFarClipPlane(clip.Far)
	cam.SetAntiAliasing(camCfg.AntiAliasingOrDefault())
	cam.SetAspectRatio(float64(img.Width) / float64(img.Height))
	cam.SetHFOV(hfov)
	if err := cam.CreateDepthTexture(); err != nil {
		s.logger.Errorw("cannot create depth texture", "error", err)
		if destroyErr := scene.DestroySensor(cam); destroyErr != nil {
			s.logger.Warnw("cannot destroy rendering depth camera", "error", destroyErr)
		}
		return err
	}

	switch format := rimage.ConvertPixelFormat(img.Format); format {
	case msgs.RFloat32:
		cam.SetImageFormat(rendering.PFFloat32R)
	default:
		s.logger.Errorw("Unsupported pixel format", "format", img.Format, "resolved", format)
	}

	s.image = cam.CreateImage()
	scene.RootVisual().AddChild(cam)
	s.camera = cam

	s.saveEnabled = false
	if camCfg.Save != nil && camCfg.Save.Enabled {
		enc, err := rimage.ParseEncoding(camCfg.Save.Encoding)
		if err != nil {
			s.logger.Warnw("unknown save encoding, saving png", "encoding", camCfg.Save.Encoding)
			enc = rimage.EncodingPNG
		}
		cm, err := rimage.ParseColorMap(camCfg.Save.ColorMap)
		if err != nil {
			s.logger.Warnw("unknown color map, saving grayscale", "color_map", camCfg.Save.ColorMap)
			cm = rimage.ColorMapGrayscale
		}
		s.saveEnabled = true
		s.savePath = camCfg.Save.Path
		s.savePrefix = s.Name() + "_"
		s.saveEncoding = enc
		s.saveColorMap = cm
	}

	s.frameConn = cam.ConnectNewDepthFrame(s.OnNewDepthFrame)
	return nil
}

// OnNewDepthFrame copies a rendered frame into the sensor buffer and applies the clip policy:
// samples at or beyond the far plane become +Inf, samples at or before the near plane -Inf.
func (s *Sensor) OnNewDepthFrame(frame rendering.DepthFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(frame.Width * frame.Height)
	if n > len(frame.Data) {
		s.logger.Errorw("depth frame is smaller than its size", "width", frame.Width, "height", frame.Height, "samples", len(frame.Data))
		return
	}
	if len(s.depth) != n {
		s.depth = make([]float32, n)
	}
	copy(s.depth, frame.Data[:n])
	s.depthW, s.depthH = frame.Width, frame.Height
	rimage.MaskDepth(s.depth, s.near, s.far)

	if s.saveEnabled {
		if err := s.saveImage(); err != nil {
			s.logger.Warnw("cannot save depth image", "error", err)
		}
	}
}

// SetScene moves the sensor to scene. The old depth camera is destroyed and, when the sensor
// is loaded, a new one is created. It is a no-op when scene is already set.
func (s *Sensor) SetScene(scene rendering.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, changed := s.SwapScene(scene)
	if !changed {
		return
	}
	s.removeCamera(old)
	if s.IsInitialized() && scene != nil {
		if err := s.createCamera(); err != nil {
			s.logger.Errorw("cannot create depth camera in new scene", "scene", scene.Name(), "error", err)
		}
	}
}

func (s *Sensor) removeCamera(scene rendering.Scene) {
	s.frameConn.Disconnect()
	s.frameConn = nil
	if s.camera != nil && scene != nil {
		if err := scene.DestroySensor(s.camera); err != nil {
			s.logger.Warnw("cannot destroy rendering depth camera", "error", err)
		}
	}
	s.camera = nil
	s.image = nil
}

// Update renders a depth frame for simulation time now and publishes the clipped buffer.
func (s *Sensor) Update(ctx context.Context, now time.Duration) error {
	if !s.IsInitialized() {
		s.logger.Error("not initialized, update ignored")
		return sensor.ErrNotInitialized
	}

	s.mu.Lock()
	cam := s.camera
	s.mu.Unlock()
	if cam == nil {
		s.logger.Error("camera doesn't exist")
		return sensor.ErrNoCamera
	}

	cam.SetLocalPose(s.Pose())
	// OnNewDepthFrame runs inside Update
	if err := cam.Update(); err != nil {
		return errors.Wrap(err, "rendering depth frame")
	}

	msg, err := s.publishFrame(now)
	if err != nil {
		return err
	}
	if err := s.imageEvent.Signal(msg); err != nil {
		s.logger.Errorw("exception thrown in an image callback", "error", err)
	}
	s.MarkUpdated(now)
	return nil
}

func (s *Sensor) publishFrame(now time.Duration) (*msgs.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera == nil {
		return nil, sensor.ErrNoCamera
	}
	width, height := s.camera.ImageWidth(), s.camera.ImageHeight()
	if uint(len(s.depth)) != width*height {
		return nil, errors.Errorf("depth camera %s has no frame of size %dx%d", s.Name(), width, height)
	}

	msg := &msgs.Image{
		Width:           uint32(width),
		Height:          uint32(height),
		Step:            uint32(width * rendering.PFFloat32R.BytesPerPixel()),
		PixelFormatType: msgs.RFloat32,
		Data:            rendering.Float32ToBytes(nil, s.depth),
	}
	msg.Header.Stamp = msgs.NewStamp(now)
	msg.Header.SetFrameID(s.Name())

	if err := s.pub.Publish(msg); err != nil {
		s.logger.Warnw("cannot publish depth image", "error", err)
	}
	return msg, nil
}

// saveImage writes the clipped buffer as <path>/<prefix><counter>.<ext>. Must hold s.mu.
func (s *Sensor) saveImage() error {
	if err := os.MkdirAll(s.savePath, 0o750); err != nil {
		return errors.Wrapf(err, "creating save directory %s", s.savePath)
	}
	if s.depthW == 0 || s.depthH == 0 {
		return errors.New("empty depth frame")
	}
	filename := fmt.Sprintf("%s%d%s", s.savePrefix, s.saveCounter, s.saveEncoding.Extension())
	s.saveCounter++

	img, err := rimage.DepthToImage(s.depth, int(s.depthW), int(s.depthH), s.saveColorMap)
	if err != nil {
		return err
	}
	return rimage.SaveImage(filepath.Join(s.savePath, filename), img, s.saveEncoding)
}

// ConnectImageCallback registers fn to be called with every published depth image. fn runs on
// the updating goroutine after the sensor lock is released.
func (s *Sensor) ConnectImageCallback(fn func(*msgs.Image)) *event.Connection {
	return s.imageEvent.Connect(fn)
}

// NearClip returns the near clip distance applied by the sensor.
func (s *Sensor) NearClip() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.near
}

// FarClip returns the far clip distance.
func (s *Sensor) FarClip() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.far
}

// ImageWidth returns the rendered width, 0 without a camera.
func (s *Sensor) ImageWidth() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera == nil {
		return 0
	}
	return s.camera.ImageWidth()
}

// ImageHeight returns the rendered height, 0 without a camera.
func (s *Sensor) ImageHeight() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera == nil {
		return 0
	}
	return s.camera.ImageHeight()
}

// DepthCamera returns the rendering depth camera, nil if none exists.
func (s *Sensor) DepthCamera() rendering.DepthCamera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// DepthData returns a copy of the clipped depth buffer.
func (s *Sensor) DepthData() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.depth...)
}

// SaveCounter returns the number of depth frames saved so far.
func (s *Sensor) SaveCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCounter
}

// Close destroys the depth camera and closes the sensor's topic.
func (s *Sensor) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCamera(s.Scene())
	return s.RenderingBase.Close()
}
