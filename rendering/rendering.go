// Package rendering defines the renderer handles that simulated cameras drive.
//
// A Scene owns cameras and a tree of visuals. Sensors create a camera in the scene, attach it
// under the root visual, render it every tick and copy the result into their own buffers.
// rendering/raster provides a software implementation.
package rendering

import (
	"github.com/pkg/errors"

	"github.com/robosim/sensors/event"
	"github.com/robosim/sensors/spatialmath"
)

// ErrUnknownNode is returned when destroying a node that the scene does not own.
var ErrUnknownNode = errors.New("node does not belong to scene")

// Node is anything placed in the scene graph.
type Node interface {
	Name() string
	LocalPose() spatialmath.Pose
	SetLocalPose(spatialmath.Pose)
}

// Visual is a node that can hold children.
type Visual interface {
	Node
	AddChild(Node)
	RemoveChild(Node)
	HasChild(Node) bool
	ChildCount() int
}

// Camera renders the scene from its pose into an Image.
type Camera interface {
	Node

	ImageWidth() uint
	SetImageWidth(uint)
	ImageHeight() uint
	SetImageHeight(uint)
	ImageFormat() PixelFormat
	SetImageFormat(PixelFormat)
	ImageMemorySize() uint

	NearClipPlane() float64
	SetNearClipPlane(float64)
	FarClipPlane() float64
	SetFarClipPlane(float64)

	HFOV() float64
	SetHFOV(float64)
	AspectRatio() float64
	SetAspectRatio(float64)
	AntiAliasing() uint
	SetAntiAliasing(uint)

	// CreateImage returns an image sized for the current width, height and format.
	CreateImage() *Image
	// Update renders a frame.
	Update() error
	// Capture renders a frame and copies it into img.
	Capture(img *Image) error
}

// LensDistorter is implemented by cameras that can render lens distortion. undistort maps a
// distorted normalized image point to the undistorted point whose ray lands there.
type LensDistorter interface {
	SetLensDistortion(undistort func(x, y float64) (float64, float64))
}

// HFOVLimiter is implemented by cameras that cannot render every field of view a sensor
// accepts. Fields of view at or above MaxHFOV cannot be drawn.
type HFOVLimiter interface {
	MaxHFOV() float64
}

// DepthFrame is a rendered depth buffer. Data is only valid for the duration of the handler.
type DepthFrame struct {
	Data     []float32
	Width    uint
	Height   uint
	Channels uint
	Format   PixelFormat
}

// DepthCamera renders distances along the optical axis.
type DepthCamera interface {
	Camera

	CreateDepthTexture() error
	// ConnectNewDepthFrame registers fn to be called synchronously by Update with each frame.
	ConnectNewDepthFrame(fn func(DepthFrame)) *event.Connection
	// DepthData returns the last rendered depth buffer.
	DepthData() []float32
}

// Scene creates and owns renderer sensors.
type Scene interface {
	Name() string
	RootVisual() Visual
	CreateCamera(name string) (Camera, error)
	CreateDepthCamera(name string) (DepthCamera, error)
	DestroySensor(Node) error
}
