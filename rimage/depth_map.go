package rimage

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/plot/palette/moreland"
)

// MaskDepth applies the clip policy in place: samples at or beyond far become +Inf and
// samples at or before near become -Inf. Other samples are left alone.
func MaskDepth(buf []float32, near, far float64) {
	posInf := float32(math.Inf(1))
	negInf := float32(math.Inf(-1))
	// compare at sample precision so a sample equal to a clip distance is masked
	n, f := float32(near), float32(far)
	for i, d := range buf {
		switch {
		case d >= f:
			buf[i] = posInf
		case d <= n:
			buf[i] = negInf
		}
	}
}

// DepthMap is a row-major buffer of float depths in meters.
type DepthMap struct {
	width  int
	height int
	data   []float32
}

// NewEmptyDepthMap returns a zeroed depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]float32, width*height)}
}

// DepthMapFromData wraps data without copying.
func DepthMapFromData(data []float32, width, height int) (*DepthMap, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, errors.Errorf("depth buffer of %d samples does not match %dx%d", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Data returns the underlying samples.
func (dm *DepthMap) Data() []float32 {
	return dm.data
}

// GetDepth returns the sample at x, y.
func (dm *DepthMap) GetDepth(x, y int) float32 {
	return dm.data[y*dm.width+x]
}

// Set sets the sample at x, y.
func (dm *DepthMap) Set(x, y int, val float32) {
	dm.data[y*dm.width+x] = val
}

// Mask applies MaskDepth to the map.
func (dm *DepthMap) Mask(near, far float64) {
	MaskDepth(dm.data, near, far)
}

// MinMax returns the smallest and largest finite samples. ok is false when there are none.
func (dm *DepthMap) MinMax() (minDepth, maxDepth float32, ok bool) {
	for _, d := range dm.data {
		if math.IsInf(float64(d), 0) || math.IsNaN(float64(d)) {
			continue
		}
		if !ok {
			minDepth, maxDepth, ok = d, d, true
			continue
		}
		if d < minDepth {
			minDepth = d
		}
		if d > maxDepth {
			maxDepth = d
		}
	}
	return minDepth, maxDepth, ok
}

// ColorMap selects how depth is drawn.
type ColorMap string

// The available depth color maps.
const (
	ColorMapGrayscale = ColorMap("grayscale")
	ColorMapMoreland  = ColorMap("moreland")
	ColorMapHue       = ColorMap("hue")
)

// ParseColorMap parses a color map name. The empty name is grayscale.
func ParseColorMap(name string) (ColorMap, error) {
	switch cm := ColorMap(strings.ToLower(name)); cm {
	case "", ColorMapGrayscale:
		return ColorMapGrayscale, nil
	case ColorMapMoreland, ColorMapHue:
		return cm, nil
	default:
		return "", errors.Errorf("unknown color map %q", name)
	}
}

// DepthToImage draws a depth buffer with the given color map.
func DepthToImage(buf []float32, width, height int, cm ColorMap) (image.Image, error) {
	dm, err := DepthMapFromData(buf, width, height)
	if err != nil {
		return nil, err
	}
	switch cm {
	case "", ColorMapGrayscale:
		return dm.ToGrayscale(), nil
	case ColorMapMoreland:
		return dm.ToMoreland()
	case ColorMapHue:
		return dm.ToPrettyPicture(), nil
	default:
		return nil, errors.Errorf("unknown color map %q", cm)
	}
}

// ToGrayscale draws near as white and far as black: each finite sample becomes
// 255 - d*255/max, where max is the largest finite sample. +Inf is black and -Inf is white.
func (dm *DepthMap) ToGrayscale() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, dm.width, dm.height))
	_, maxDepth, ok := dm.MinMax()
	factor := float64(0)
	if ok && maxDepth > 0 {
		factor = 255 / float64(maxDepth)
	}
	for i, d := range dm.data {
		var v float64
		switch {
		case math.IsInf(float64(d), 1) || math.IsNaN(float64(d)):
			v = 0
		case math.IsInf(float64(d), -1):
			v = 255
		default:
			v = 255 - float64(d)*factor
		}
		img.Pix[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	return img
}

// ToMoreland draws finite samples with the smooth blue to red diverging map, scaled between
// the nearest and farthest finite sample. Infinite samples are transparent.
func (dm *DepthMap) ToMoreland() (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, dm.width, dm.height))
	minDepth, maxDepth, ok := dm.MinMax()
	if !ok {
		return img, nil
	}
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(float64(minDepth))
	// the palette needs a non-empty range
	cmap.SetMax(math.Max(float64(maxDepth), float64(minDepth)+1e-6))
	for i, d := range dm.data {
		if math.IsInf(float64(d), 0) || math.IsNaN(float64(d)) {
			continue
		}
		c, err := cmap.At(float64(d))
		if err != nil {
			return nil, errors.Wrapf(err, "coloring depth %v", d)
		}
		img.Set(i%dm.width, i/dm.width, c)
	}
	return img, nil
}

// ToPrettyPicture draws finite samples with hues from orange (near) to blue (far).
func (dm *DepthMap) ToPrettyPicture() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, dm.width, dm.height))
	minDepth, maxDepth, ok := dm.MinMax()
	if !ok {
		return img
	}
	span := float64(maxDepth - minDepth)
	for i, d := range dm.data {
		if math.IsInf(float64(d), 0) || math.IsNaN(float64(d)) {
			continue
		}
		ratio := 0.0
		if span > 0 {
			ratio = float64(d-minDepth) / span
		}
		hue := 30 + (200.0 * ratio)
		r, g, b := colorful.Hsv(hue, 1.0, 1.0).RGB255()
		img.Set(i%dm.width, i/dm.width, color.RGBA{R: r, G: g, B: b, A: 0xff})
	}
	return img
}
