package inject

import (
	"github.com/robosim/sensors/rendering"
)

// Camera is an injected rendering camera.
type Camera struct {
	rendering.Camera
	UpdateFunc  func() error
	CaptureFunc func(img *rendering.Image) error
}

// Update calls the injected Update or the real version.
func (c *Camera) Update() error {
	if c.UpdateFunc == nil {
		return c.Camera.Update()
	}
	return c.UpdateFunc()
}

// Capture calls the injected Capture or the real version.
func (c *Camera) Capture(img *rendering.Image) error {
	if c.CaptureFunc == nil {
		return c.Camera.Capture(img)
	}
	return c.CaptureFunc(img)
}

// DepthCamera is an injected rendering depth camera.
type DepthCamera struct {
	rendering.DepthCamera
	UpdateFunc             func() error
	CreateDepthTextureFunc func() error
}

// Update calls the injected Update or the real version.
func (c *DepthCamera) Update() error {
	if c.UpdateFunc == nil {
		return c.DepthCamera.Update()
	}
	return c.UpdateFunc()
}

// CreateDepthTexture calls the injected CreateDepthTexture or the real version.
func (c *DepthCamera) CreateDepthTexture() error {
	if c.CreateDepthTextureFunc == nil {
		return c.DepthCamera.CreateDepthTexture()
	}
	return c.CreateDepthTextureFunc()
}
