package rendering

import "fmt"

// PixelFormat is a renderer-native pixel layout.
type PixelFormat int

// The renderer pixel formats.
const (
	PFUnknown PixelFormat = iota
	PFL8
	PFR8G8B8
	PFB8G8R8
	PFBayerRGGB8
	PFBayerBGGR8
	PFBayerGBRG8
	PFBayerGRBG8
	PFFloat32R
	PFFloat32RGB
	PFFloat32RGBA
	PFR8G8B8A8
)

var pixelFormatInfo = map[PixelFormat]struct {
	name            string
	channels        uint
	bytesPerChannel uint
}{
	PFUnknown:     {"PF_UNKNOWN", 0, 0},
	PFL8:          {"PF_L8", 1, 1},
	PFR8G8B8:      {"PF_R8G8B8", 3, 1},
	PFB8G8R8:      {"PF_B8G8R8", 3, 1},
	PFBayerRGGB8:  {"PF_BAYER_RGGB8", 1, 1},
	PFBayerBGGR8:  {"PF_BAYER_BGGR8", 1, 1},
	PFBayerGBRG8:  {"PF_BAYER_GBRG8", 1, 1},
	PFBayerGRBG8:  {"PF_BAYER_GRBG8", 1, 1},
	PFFloat32R:    {"PF_FLOAT32_R", 1, 4},
	PFFloat32RGB:  {"PF_FLOAT32_RGB", 3, 4},
	PFFloat32RGBA: {"PF_FLOAT32_RGBA", 4, 4},
	PFR8G8B8A8:    {"PF_R8G8B8A8", 4, 1},
}

// Name returns the renderer's name for the format.
func (f PixelFormat) Name() string {
	if info, ok := pixelFormatInfo[f]; ok {
		return info.name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

func (f PixelFormat) String() string {
	return f.Name()
}

// Valid reports whether f is a known format other than PFUnknown.
func (f PixelFormat) Valid() bool {
	_, ok := pixelFormatInfo[f]
	return ok && f != PFUnknown
}

// ChannelCount returns the number of channels per pixel.
func (f PixelFormat) ChannelCount() uint {
	return pixelFormatInfo[f].channels
}

// BytesPerChannel returns the size of one channel in bytes.
func (f PixelFormat) BytesPerChannel() uint {
	return pixelFormatInfo[f].bytesPerChannel
}

// BytesPerPixel returns the size of one pixel in bytes.
func (f PixelFormat) BytesPerPixel() uint {
	return f.ChannelCount() * f.BytesPerChannel()
}

// MemorySize returns the buffer size for an image of the given dimensions.
func (f PixelFormat) MemorySize(width, height uint) uint {
	return width * height * f.BytesPerPixel()
}

// PixelFormatFromName parses a renderer format name, returning PFUnknown if unrecognized.
func PixelFormatFromName(name string) PixelFormat {
	for f, info := range pixelFormatInfo {
		if info.name == name {
			return f
		}
	}
	return PFUnknown
}
