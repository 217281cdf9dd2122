// Package rimage converts raw sensor buffers to images and writes them to disk.
package rimage

import (
	"strings"

	"github.com/robosim/sensors/msgs"
)

// pixelFormatAliases maps the short format names used in sensor descriptions to message
// pixel formats. Canonical message names are accepted as well.
var pixelFormatAliases = map[string]msgs.PixelFormatType{
	"L8":        msgs.LInt8,
	"L16":       msgs.LInt16,
	"R8G8B8":    msgs.RGBInt8,
	"B8G8R8":    msgs.BGRInt8,
	"R8G8B8A8":  msgs.RGBAInt8,
	"B8G8R8A8":  msgs.BGRAInt8,
	"R16G16B16": msgs.RGBInt16,
	"R32G32B32": msgs.RGBInt32,
	"FLOAT32":   msgs.RFloat32,
	"FLOAT16":   msgs.RFloat16,
}

// ConvertPixelFormat parses a pixel format name. Unrecognized names yield
// msgs.UnknownPixelFormat.
func ConvertPixelFormat(name string) msgs.PixelFormatType {
	name = strings.ToUpper(strings.TrimSpace(name))
	if f, ok := pixelFormatAliases[name]; ok {
		return f
	}
	return msgs.PixelFormatFromString(name)
}

// BytesPerPixel returns the size of one pixel of f, or 0 for unknown formats.
func BytesPerPixel(f msgs.PixelFormatType) uint {
	switch f {
	case msgs.LInt8, msgs.BayerRGGB8, msgs.BayerRGGR8, msgs.BayerGBRG8, msgs.BayerGRBG8:
		return 1
	case msgs.LInt16, msgs.RFloat16:
		return 2
	case msgs.RGBInt8, msgs.BGRInt8:
		return 3
	case msgs.RGBAInt8, msgs.BGRAInt8, msgs.RFloat32:
		return 4
	case msgs.RGBInt16, msgs.BGRInt16, msgs.RGBFloat16:
		return 6
	case msgs.RGBInt32, msgs.BGRInt32, msgs.RGBFloat32:
		return 12
	default:
		return 0
	}
}
