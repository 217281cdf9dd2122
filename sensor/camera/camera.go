// Package camera implements a simulated colour camera that renders the scene each update and
// publishes the frame together with its calibration.
package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/event"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/msgs"
	"github.com/robosim/sensors/noise"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/rimage"
	"github.com/robosim/sensors/rimage/transform"
	"github.com/robosim/sensors/sensor"
	"github.com/robosim/sensors/transport"
)

// InfoTopicSuffix is appended to the image topic to form the camera info topic.
const InfoTopicSuffix = "/camera_info"

func init() {
	sensor.Register(config.SensorTypeCamera, sensor.Registration{
		Constructor: func(deps sensor.Dependencies) (sensor.Sensor, error) {
			return New(deps), nil
		},
	})
}

// Sensor is a simulated colour camera.
type Sensor struct {
	sensor.RenderingBase

	// mu serializes scene swaps, updates and saves.
	mu     sync.Mutex
	cfg    config.Sensor
	logger logging.Logger

	camera   rendering.Camera
	image    *rendering.Image
	info     *msgs.CameraInfo
	noise    noise.Model
	imagePub *transport.Publisher[*msgs.Image]
	infoPub  *transport.Publisher[*msgs.CameraInfo]

	saveEnabled  bool
	savePath     string
	savePrefix   string
	saveEncoding rimage.Encoding
	saveCounter  uint64

	imageEvent event.Event[*msgs.Image]
}

// New returns an unloaded camera sensor rendering into deps.Scene.
func New(deps sensor.Dependencies) *Sensor {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Global().Sublogger("camera")
	}
	return &Sensor{
		RenderingBase: sensor.NewRenderingBase(deps.Bus, deps.Scene, logger),
		logger:        logger,
	}
}

// Load configures the sensor from cfg, advertises its topics and creates the rendering camera
// when a scene is already set.
func (s *Sensor) Load(ctx context.Context, cfg config.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.RenderingBase.Load(cfg); err != nil {
		return err
	}
	s.logger = s.RenderingBase.Logger()
	if cfg.Type != config.SensorTypeCamera {
		s.logger.Errorw("attempting to load a camera sensor from a different sensor type", "type", cfg.Type)
	}
	if cfg.Camera == nil {
		err := errors.Errorf("camera sensor %s has no camera element", cfg.Name)
		s.logger.Error(err)
		return err
	}
	s.cfg = cfg

	imagePub, err := transport.Advertise[*msgs.Image](s.Node(), s.Topic())
	if err != nil {
		return errors.Wrap(err, "advertising image topic")
	}
	infoPub, err := transport.Advertise[*msgs.CameraInfo](s.Node(), s.InfoTopic())
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "advertising camera info topic"), imagePub.Close())
	}
	s.imagePub, s.infoPub = imagePub, infoPub

	if s.Scene() != nil {
		if err := s.createCamera(); err != nil {
			return err
		}
	}
	s.SetInitialized(true)
	s.logger.CDebugw(ctx, "loaded camera sensor", "topic", s.Topic(), "info_topic", s.InfoTopic())
	return nil
}

// InfoTopic returns the camera info topic.
func (s *Sensor) InfoTopic() string {
	return s.Topic() + InfoTopicSuffix
}

// CreateCamera creates the rendering camera in the current scene.
func (s *Sensor) CreateCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCamera()
}

func (s *Sensor) createCamera() error {
	scene := s.Scene()
	if scene == nil {
		return errors.Errorf("camera sensor %s has no scene", s.Name())
	}
	camCfg := s.cfg.Camera
	if camCfg == nil {
		err := errors.Errorf("camera sensor %s has no camera element", s.Name())
		s.logger.Error(err)
		return err
	}
	img := camCfg.ImageOrDefault(config.DefaultImageFormat)
	clip := camCfg.ClipOrDefault(config.DefaultNearClip, config.DefaultFarClip)
	hfov := camCfg.HFOV()
	if err := sensor.ValidateHFOV(hfov); err != nil {
		s.logger.Errorw("invalid horizontal field of view", "hfov", hfov)
		return err
	}

	info, distorter, err := cameraInfo(s.Name(), camCfg, img)
	if err != nil {
		s.logger.Errorw("cannot build camera info", "error", err)
		return err
	}
	s.info = info

	cam, err := scene.CreateCamera(s.Name())
	if err != nil {
		s.logger.Errorw("cannot create rendering camera", "error", err)
		return err
	}
	if err := sensor.ValidateRendererHFOV(cam, hfov); err != nil {
		s.logger.Errorw("renderer cannot draw horizontal field of view", "hfov", hfov)
		if destroyErr := scene.DestroySensor(cam); destroyErr != nil {
			s.logger.Warnw("cannot destroy rendering camera", "error", destroyErr)
		}
		return err
	}
	cam.SetImageWidth(img.Width)
	cam.SetImageHeight(img.Height)
	cam.SetNearClipPlane(clip.Near)
	cam.SetFarClipPlane(clip.Far)

	s.noise = noise.NewModel(camCfg.Noise, config.SensorTypeCamera, s.logger)

	cam.SetAntiAliasing(camCfg.AntiAliasingOrDefault())

	cam.SetAspectRatio(float64(img.Width) / float64(img.Height))
	cam.SetHFOV(hfov)

	if distorter != nil {
		if lens, ok := cam.(rendering.LensDistorter); ok {
			lens.SetLensDistortion(distorter.Inverse().Transform)
		} else {
			s.logger.Warn("rendering camera does not support lens distortion, rendering without it")
		}
	}

	switch format := rimage.ConvertPixelFormat(img.Format); format {
	case msgs.RGBInt8:
		cam.SetImageFormat(rendering.PFR8G8B8)
	case msgs.BGRInt8:
		cam.SetImageFormat(rendering.PFB8G8R8)
	case msgs.LInt8:
		cam.SetImageFormat(rendering.PFL8)
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
		s.saveEnabled = true
		s.savePath = camCfg.Save.Path
		s.savePrefix = s.Name() + "_"
		s.saveEncoding = enc
	}
	return nil
}

// cameraInfo builds the static calibration message. The distorter is nil when the lens has no
// distortion.
func cameraInfo(name string, camCfg *config.Camera, img config.Image) (*msgs.CameraInfo, *transform.BrownConrady, error) {
	d := camCfg.DistortionOrZero()
	bc, err := transform.NewBrownConrady([]float64{d.K1, d.K2, d.K3, d.P1, d.P2})
	if err != nil {
		return nil, nil, err
	}
	lens := camCfg.LensIntrinsics(img.Width, img.Height)
	intrinsics := &transform.PinholeCameraIntrinsics{
		Width:  int(img.Width),
		Height: int(img.Height),
		Fx:     lens.Fx,
		Fy:     lens.Fy,
		Ppx:    lens.Cx,
		Ppy:    lens.Cy,
		Skew:   lens.S,
	}
	info := &msgs.CameraInfo{
		Width:               uint32(img.Width),
		Height:              uint32(img.Height),
		Distortion:          msgs.Distortion{Model: msgs.PlumbBob, K: bc.PlumbBobCoefficients()},
		Intrinsics:          msgs.Intrinsics{K: transform.RowMajor9(intrinsics.CameraMatrix())},
		Projection:          msgs.Projection{P: transform.RowMajor12(intrinsics.ProjectionMatrix(0, 0))},
		RectificationMatrix: transform.RowMajor9(transform.RectificationIdentity()),
	}
	info.Header.SetFrameID(name)
	if bc.IsZero() {
		return info, nil, nil
	}
	return info, bc, nil
}

// SetScene moves the sensor to scene. The old rendering camera is destroyed and, when the
// sensor is loaded, a new one is created. It is a no-op when scene is already set.
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
			s.logger.Errorw("cannot create camera in new scene", "scene", scene.Name(), "error", err)
		}
	}
}

func (s *Sensor) removeCamera(scene rendering.Scene) {
	if s.camera != nil && scene != nil {
		if err := scene.DestroySensor(s.camera); err != nil {
			s.logger.Warnw("cannot destroy rendering camera", "error", err)
		}
	}
	s.camera = nil
	s.image = nil
}

// Update renders a frame for simulation time now, publishes it with the camera info and
// then runs the image callbacks.
func (s *Sensor) Update(ctx context.Context, now time.Duration) error {
	if !s.IsInitialized() {
		s.logger.Error("not initialized, update ignored")
		return sensor.ErrNotInitialized
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
		s.logger.Error("camera doesn't exist")
		return nil, sensor.ErrNoCamera
	}

	s.camera.SetLocalPose(s.Pose())
	if err := s.camera.Capture(s.image); err != nil {
		return nil, errors.Wrap(err, "capturing frame")
	}
	if model, ok := s.noise.(noise.ImageModel); ok {
		model.ApplyImage(s.image.Data())
	}

	width, height := s.camera.ImageWidth(), s.camera.ImageHeight()
	renderFormat := s.camera.ImageFormat()
	format := messageFormat(renderFormat)
	data := s.image.Data()
	if format == msgs.UnknownPixelFormat {
		s.logger.Errorw("Unsupported pixel format", "format", renderFormat)
		data = make([]byte, len(data))
	}

	stamp := msgs.NewStamp(now)
	msg := &msgs.Image{
		Width:           uint32(width),
		Height:          uint32(height),
		Step:            uint32(width * renderFormat.BytesPerPixel()),
		PixelFormatType: format,
		Data:            append([]byte(nil), data...),
	}
	msg.Header.Stamp = stamp
	msg.Header.SetFrameID(s.Name())

	if err := s.imagePub.Publish(msg); err != nil {
		s.logger.Warnw("cannot publish image", "error", err)
	}
	info := s.info.Clone()
	info.Header.Stamp = stamp
	if err := s.infoPub.Publish(info); err != nil {
		s.logger.Warnw("cannot publish camera info", "error", err)
	}

	if s.saveEnabled {
		if err := s.saveImage(msg); err != nil {
			s.logger.Warnw("cannot save image", "error", err)
		}
	}
	return msg, nil
}

func messageFormat(f rendering.PixelFormat) msgs.PixelFormatType {
	switch f {
	case rendering.PFR8G8B8:
		return msgs.RGBInt8
	case rendering.PFB8G8R8:
		return msgs.BGRInt8
	case rendering.PFL8:
		return msgs.LInt8
	default:
		return msgs.UnknownPixelFormat
	}
}

// saveImage writes msg to <path>/<prefix><counter>.<ext>. Must hold s.mu.
func (s *Sensor) saveImage(msg *msgs.Image) error {
	if err := os.MkdirAll(s.savePath, 0o750); err != nil {
		return errors.Wrapf(err, "creating save directory %s", s.savePath)
	}
	filename := fmt.Sprintf("%s%d%s", s.savePrefix, s.saveCounter, s.saveEncoding.Extension())
	s.saveCounter++

	img, err := rimage.FromMessage(msg)
	if err != nil {
		return err
	}
	return rimage.SaveImage(filepath.Join(s.savePath, filename), img, s.saveEncoding)
}

// SaveImage writes msg into the save directory under the next file name and advances the
// save counter.
func (s *Sensor) SaveImage(msg *msgs.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.savePath == "" {
		return errors.Errorf("camera sensor %s has no save path", s.Name())
	}
	return s.saveImage(msg)
}

// ConnectImageCallback registers fn to be called with every published image. fn runs on the
// updating goroutine after the sensor lock is released.
func (s *Sensor) ConnectImageCallback(fn func(*msgs.Image)) *event.Connection {
	return s.imageEvent.Connect(fn)
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

// RenderingCamera returns the rendering camera, nil if none exists.
func (s *Sensor) RenderingCamera() rendering.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// CameraInfo returns a copy of the calibration message, nil before the camera was created.
func (s *Sensor) CameraInfo() *msgs.CameraInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return nil
	}
	return s.info.Clone()
}

// SaveCounter returns the number of frames saved so far.
func (s *Sensor) SaveCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCounter
}

// Close destroys the rendering camera and closes the sensor's topics.
func (s *Sensor) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCamera(s.Scene())
	return s.RenderingBase.Close()
}
