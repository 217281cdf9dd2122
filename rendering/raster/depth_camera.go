package raster

import (
	"math"

	"github.com/pkg/errors"

	"github.com/robosim/sensors/event"
	"github.com/robosim/sensors/rendering"
)

// DepthCamera renders distance along the optical axis into a float buffer. Samples that hit
// nothing before the far plane are +Inf.
type DepthCamera struct {
	*Camera

	textureCreated bool
	depth          []float32
	newFrame       event.Event[rendering.DepthFrame]
}

func newDepthCamera(scene *Scene, name string) *DepthCamera {
	cam := newCamera(scene, name)
	cam.format = rendering.PFFloat32R
	return &DepthCamera{Camera: cam}
}

// CreateDepthTexture allocates the depth target. Update fails until it is called.
func (d *DepthCamera) CreateDepthTexture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.width == 0 || d.height == 0 {
		return errors.Errorf("depth camera %s has no image size", d.name)
	}
	d.textureCreated = true
	d.depth = make([]float32, d.width*d.height)
	return nil
}

// ConnectNewDepthFrame registers fn to receive every rendered frame.
func (d *DepthCamera) ConnectNewDepthFrame(fn func(rendering.DepthFrame)) *event.Connection {
	return d.newFrame.Connect(fn)
}

// DepthData returns a copy of the last rendered frame.
func (d *DepthCamera) DepthData() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float32(nil), d.depth...)
}

// Update renders a depth frame and hands it to the connected handlers on the calling goroutine.
func (d *DepthCamera) Update() error {
	frame, err := d.render()
	if err != nil {
		return err
	}
	if err := d.newFrame.Signal(frame); err != nil {
		return errors.Wrapf(err, "depth camera %s frame handler", d.name)
	}
	return nil
}

// Capture renders a depth frame and copies it into img as PF_FLOAT32_R.
func (d *DepthCamera) Capture(img *rendering.Image) error {
	if img == nil {
		return errors.New("nil capture image")
	}
	if err := d.Update(); err != nil {
		return err
	}
	if img.Format() != rendering.PFFloat32R {
		return errors.Errorf("depth camera %s cannot capture into %s", d.name, img.Format())
	}
	data := d.DepthData()
	if uint(len(data)) != img.Width()*img.Height() {
		return errors.Errorf("capture image is %dx%d, depth camera renders %d samples", img.Width(), img.Height(), len(data))
	}
	rendering.Float32ToBytes(img.Data()[:0], data)
	return nil
}

func (d *DepthCamera) render() (rendering.DepthFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.textureCreated {
		return rendering.DepthFrame{}, errors.Errorf("depth camera %s has no depth texture", d.name)
	}
	v, err := d.view()
	if err != nil {
		return rendering.DepthFrame{}, err
	}
	if len(d.depth) != v.width*v.height {
		d.depth = make([]float32, v.width*v.height)
	}

	pose := d.WorldPose()
	objects := d.scene.snapshot().objects
	inf := float32(math.Inf(1))
	depth := d.depth
	err = d.forEachRow(v.height, func(row int) {
		for u := 0; u < v.width; u++ {
			dir := pose.Rotate(v.ray(u, row))
			depth[row*v.width+u] = inf
			if h, _, ok := d.scene.trace(objects, pose.Point, dir, v.near, v.far); ok {
				depth[row*v.width+u] = float32(h.T)
			}
		}
	})
	if err != nil {
		return rendering.DepthFrame{}, err
	}
	return rendering.DepthFrame{
		Data:     depth,
		Width:    uint(v.width),
		Height:   uint(v.height),
		Channels: 1,
		Format:   rendering.PFFloat32R,
	}, nil
}
