package rendering

import (
	"encoding/binary"
	"math"
)

// Image is a CPU-side copy of a rendered frame.
type Image struct {
	width  uint
	height uint
	format PixelFormat
	data   []byte
}

// NewImage allocates a zeroed image.
func NewImage(width, height uint, format PixelFormat) *Image {
	return &Image{
		width:  width,
		height: height,
		format: format,
		data:   make([]byte, format.MemorySize(width, height)),
	}
}

// Width returns the image width in pixels.
func (img *Image) Width() uint { return img.width }

// Height returns the image height in pixels.
func (img *Image) Height() uint { return img.height }

// Format returns the pixel format of the buffer.
func (img *Image) Format() PixelFormat { return img.format }

// Depth returns the number of channels.
func (img *Image) Depth() uint { return img.format.ChannelCount() }

// MemorySize returns the buffer length in bytes.
func (img *Image) MemorySize() uint { return uint(len(img.data)) }

// Valid reports whether the image has a buffer.
func (img *Image) Valid() bool { return img != nil && len(img.data) > 0 }

// Data returns the underlying buffer. Writes are visible to later readers.
func (img *Image) Data() []byte { return img.data }

// Float32Data decodes a float image into a new slice. It returns nil for byte formats.
func (img *Image) Float32Data() []float32 {
	if img.format.BytesPerChannel() != 4 {
		return nil
	}
	return BytesToFloat32(img.data)
}

// BytesToFloat32 decodes little-endian float32 samples.
func BytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Float32ToBytes encodes samples as little-endian float32 bytes into dst, growing it if needed.
func Float32ToBytes(dst []byte, samples []float32) []byte {
	n := len(samples) * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return dst
}
