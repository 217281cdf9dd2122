package raster

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/robosim/sensors/rendering"
)

// Camera defaults, matching a freshly created renderer camera.
const (
	defaultWidth  = 320
	defaultHeight = 240
	defaultHFOV   = math.Pi / 2
	defaultNear   = 0.01
	defaultFar    = 1000
)

// Camera is a pinhole colour camera. The optical axis is +X, image right is -Y and image
// down is -Z in the camera frame.
type Camera struct {
	baseNode
	scene *Scene

	mu           sync.Mutex
	width        uint
	height       uint
	format       rendering.PixelFormat
	near, far    float64
	hfov, aspect float64
	antiAliasing uint
	undistort    func(x, y float64) (float64, float64)
	frame        []byte
}

func newCamera(scene *Scene, name string) *Camera {
	return &Camera{
		baseNode: newBaseNode(name),
		scene:    scene,
		width:    defaultWidth,
		height:   defaultHeight,
		format:   rendering.PFR8G8B8,
		near:     defaultNear,
		far:      defaultFar,
		hfov:     defaultHFOV,
		aspect:   float64(defaultWidth) / float64(defaultHeight),
	}
}

// ImageWidth returns the image width in pixels.
func (c *Camera) ImageWidth() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// SetImageWidth sets the image width in pixels.
func (c *Camera) SetImageWidth(w uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = w
}

// ImageHeight returns the image height in pixels.
func (c *Camera) ImageHeight() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// SetImageHeight sets the image height in pixels.
func (c *Camera) SetImageHeight(h uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = h
}

// ImageFormat returns the output pixel format.
func (c *Camera) ImageFormat() rendering.PixelFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// SetImageFormat sets the output pixel format.
func (c *Camera) SetImageFormat(f rendering.PixelFormat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = f
}

// ImageMemorySize returns the size of one frame in bytes.
func (c *Camera) ImageMemorySize() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format.MemorySize(c.width, c.height)
}

// NearClipPlane returns the near clip distance.
func (c *Camera) NearClipPlane() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

// SetNearClipPlane sets the near clip distance.
func (c *Camera) SetNearClipPlane(near float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
}

// FarClipPlane returns the far clip distance.
func (c *Camera) FarClipPlane() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

// SetFarClipPlane sets the far clip distance.
func (c *Camera) SetFarClipPlane(far float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
}

// HFOV returns the horizontal field of view in radians.
func (c *Camera) HFOV() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hfov
}

// SetHFOV sets the horizontal field of view in radians. The pinhole projection only draws
// fields of view in (0, MaxHFOV); Update fails for anything else.
func (c *Camera) SetHFOV(hfov float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hfov = hfov
}

// MaxHFOV returns the exclusive upper bound on the field of view this camera can draw.
func (c *Camera) MaxHFOV() float64 {
	return math.Pi
}

// AspectRatio returns width over height of the view frustum.
func (c *Camera) AspectRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

// SetAspectRatio sets width over height of the view frustum.
func (c *Camera) SetAspectRatio(ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = ratio
}

// AntiAliasing returns the recorded anti-aliasing level. The raster renderer ignores it.
func (c *Camera) AntiAliasing() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.antiAliasing
}

// SetAntiAliasing records the anti-aliasing level.
func (c *Camera) SetAntiAliasing(aa uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.antiAliasing = aa
}

// SetLensDistortion makes the camera render through a lens. nil removes the lens.
func (c *Camera) SetLensDistortion(undistort func(x, y float64) (float64, float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.undistort = undistort
}

// CreateImage returns an image sized for the current settings.
func (c *Camera) CreateImage() *rendering.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return rendering.NewImage(c.width, c.height, c.format)
}

// Update renders a frame into the camera's buffer.
func (c *Camera) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame, err := c.renderColor()
	if err != nil {
		return err
	}
	c.frame = frame
	return nil
}

// Capture renders a frame and copies it into img.
func (c *Camera) Capture(img *rendering.Image) error {
	if img == nil {
		return errors.New("nil capture image")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	frame, err := c.renderColor()
	if err != nil {
		return err
	}
	c.frame = frame
	if img.Width() != c.width || img.Height() != c.height || img.Format() != c.format {
		return errors.Errorf("capture image is %dx%d %s, camera renders %dx%d %s",
			img.Width(), img.Height(), img.Format(), c.width, c.height, c.format)
	}
	copy(img.Data(), frame)
	return nil
}

// view is the per-frame ray setup. Must be built with c.mu held.
type view struct {
	width, height int
	fx, fy        float64
	cx, cy        float64
	near, far     float64
	undistort     func(x, y float64) (float64, float64)
}

func (c *Camera) view() (view, error) {
	if c.width == 0 || c.height == 0 {
		return view{}, errors.Errorf("camera %s has no image size", c.name)
	}
	if c.hfov <= 0 || c.hfov >= c.MaxHFOV() {
		return view{}, errors.Errorf("camera %s cannot render a field of view of %v", c.name, c.hfov)
	}
	aspect := c.aspect
	if aspect <= 0 {
		aspect = float64(c.width) / float64(c.height)
	}
	tanH := math.Tan(c.hfov / 2)
	tanV := tanH / aspect
	return view{
		width:     int(c.width),
		height:    int(c.height),
		fx:        float64(c.width) / (2 * tanH),
		fy:        float64(c.height) / (2 * tanV),
		cx:        float64(c.width) / 2,
		cy:        float64(c.height) / 2,
		near:      c.near,
		far:       c.far,
		undistort: c.undistort,
	}, nil
}

// ray returns the camera-frame direction through pixel (u, v) with unit forward component,
// so the hit parameter is the depth along the optical axis.
func (v view) ray(u, row int) r3.Vector {
	x := (float64(u) + 0.5 - v.cx) / v.fx
	y := (float64(row) + 0.5 - v.cy) / v.fy
	if v.undistort != nil {
		x, y = v.undistort(x, y)
	}
	return r3.Vector{X: 1, Y: -x, Z: -y}
}

// forEachRow runs fn for every row on the scene's worker pool.
func (c *Camera) forEachRow(height int, fn func(row int)) error {
	var g errgroup.Group
	g.SetLimit(c.scene.workers)
	for row := 0; row < height; row++ {
		row := row
		g.Go(func() error {
			fn(row)
			return nil
		})
	}
	return g.Wait()
}

// renderColor draws the scene in c.format. Formats the renderer cannot write come out as
// zeros. Must hold c.mu.
func (c *Camera) renderColor() ([]byte, error) {
	v, err := c.view()
	if err != nil {
		return nil, err
	}
	format := c.format
	bpp := int(format.BytesPerPixel())
	out := make([]byte, v.width*v.height*bpp)
	switch format {
	case rendering.PFR8G8B8, rendering.PFB8G8R8, rendering.PFL8, rendering.PFR8G8B8A8:
	default:
		return out, nil
	}

	pose := c.WorldPose()
	light := c.scene.snapshot()
	err = c.forEachRow(v.height, func(row int) {
		for u := 0; u < v.width; u++ {
			dir := pose.Rotate(v.ray(u, row))
			col := light.background
			if h, obj, ok := c.scene.trace(light.objects, pose.Point, dir, v.near, v.far); ok {
				col = light.shade(obj, h, dir)
			}
			r, g, b := col.RGB255()
			px := out[(row*v.width+u)*bpp:]
			switch format {
			case rendering.PFR8G8B8:
				px[0], px[1], px[2] = r, g, b
			case rendering.PFB8G8R8:
				px[0], px[1], px[2] = b, g, r
			case rendering.PFR8G8B8A8:
				px[0], px[1], px[2], px[3] = r, g, b, 0xff
			case rendering.PFL8:
				px[0] = uint8(math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
			}
		}
	})
	return out, err
}
