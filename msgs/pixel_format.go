package msgs

import "fmt"

// PixelFormatType is the pixel layout carried by an Image message.
type PixelFormatType int32

// Known pixel formats. The numeric values are part of the message contract.
const (
	UnknownPixelFormat PixelFormatType = iota
	LInt8
	LInt16
	RGBInt8
	RGBAInt8
	BGRAInt8
	RGBInt16
	RGBInt32
	BGRInt8
	BGRInt16
	BGRInt32
	RFloat16
	RGBFloat16
	RFloat32
	RGBFloat32
	BayerRGGB8
	BayerRGGR8
	BayerGBRG8
	BayerGRBG8
)

var pixelFormatNames = map[PixelFormatType]string{
	UnknownPixelFormat: "UNKNOWN_PIXEL_FORMAT",
	LInt8:              "L_INT8",
	LInt16:             "L_INT16",
	RGBInt8:            "RGB_INT8",
	RGBAInt8:           "RGBA_INT8",
	BGRAInt8:           "BGRA_INT8",
	RGBInt16:           "RGB_INT16",
	RGBInt32:           "RGB_INT32",
	BGRInt8:            "BGR_INT8",
	BGRInt16:           "BGR_INT16",
	BGRInt32:           "BGR_INT32",
	RFloat16:           "R_FLOAT16",
	RGBFloat16:         "RGB_FLOAT16",
	RFloat32:           "R_FLOAT32",
	RGBFloat32:         "RGB_FLOAT32",
	BayerRGGB8:         "BAYER_RGGB8",
	BayerRGGR8:         "BAYER_RGGR8",
	BayerGBRG8:         "BAYER_GBRG8",
	BayerGRBG8:         "BAYER_GRBG8",
}

func (p PixelFormatType) String() string {
	if name, ok := pixelFormatNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormatType(%d)", int32(p))
}

// PixelFormatFromString is the inverse of String. Unknown names map to UnknownPixelFormat.
func PixelFormatFromString(name string) PixelFormatType {
	for format, formatName := range pixelFormatNames {
		if formatName == name {
			return format
		}
	}
	return UnknownPixelFormat
}
