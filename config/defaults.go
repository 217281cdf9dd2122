package config

import "math"

// Defaults applied to camera elements that leave a value unset.
const (
	DefaultImageWidth    = 320
	DefaultImageHeight   = 240
	DefaultImageFormat   = "R8G8B8"
	DefaultDepthFormat   = "R_FLOAT32"
	DefaultHorizontalFOV = 1.047
	DefaultNearClip      = 0.1
	DefaultFarClip       = 100.0
	DefaultDepthNearClip = 0.3
	DefaultDepthFarClip  = 100.0
	DefaultAntiAliasing  = 2
)

// ImageOrDefault returns the image element with unset fields defaulted. format is used when
// the element has no format.
func (c *Camera) ImageOrDefault(format string) Image {
	img := Image{Width: DefaultImageWidth, Height: DefaultImageHeight, Format: format}
	if c == nil || c.Image == nil {
		return img
	}
	if c.Image.Width > 0 {
		img.Width = c.Image.Width
	}
	if c.Image.Height > 0 {
		img.Height = c.Image.Height
	}
	if c.Image.Format != "" {
		img.Format = c.Image.Format
	}
	return img
}

// HFOV returns the horizontal field of view, defaulted when unset. An explicit zero is kept
// so that camera creation rejects it.
func (c *Camera) HFOV() float64 {
	if c == nil || c.HorizontalFOV == nil {
		return DefaultHorizontalFOV
	}
	return *c.HorizontalFOV
}

// ClipOrDefault returns the clip planes, or near and far when there is no clip element.
func (c *Camera) ClipOrDefault(near, far float64) Clip {
	if c == nil || c.Clip == nil {
		return Clip{Near: near, Far: far}
	}
	return *c.Clip
}

// LensIntrinsics returns the configured intrinsics or ones derived from the field of view,
// with fx = fy = width / (2 tan(hfov / 2)) and the principal point at the image center.
func (c *Camera) LensIntrinsics(width, height uint) Intrinsics {
	if c != nil && c.Lens != nil && c.Lens.Intrinsics != nil {
		return *c.Lens.Intrinsics
	}
	f := float64(width) / (2 * math.Tan(c.HFOV()/2))
	return Intrinsics{Fx: f, Fy: f, Cx: float64(width) / 2, Cy: float64(height) / 2}
}

// DistortionOrZero returns the distortion coefficients, zero when unset.
func (c *Camera) DistortionOrZero() Distortion {
	if c == nil || c.Distortion == nil {
		return Distortion{}
	}
	return *c.Distortion
}

// AntiAliasingOrDefault returns the anti-aliasing level, defaulted when unset.
func (c *Camera) AntiAliasingOrDefault() uint {
	if c == nil || c.AntiAliasing == 0 {
		return DefaultAntiAliasing
	}
	return c.AntiAliasing
}
