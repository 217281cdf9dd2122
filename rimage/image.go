package rimage

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/robosim/sensors/msgs"
	"github.com/robosim/sensors/rendering"
)

// ErrUnsupportedPixelFormat is returned for buffers that cannot be turned into an image.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

// FromData wraps a raw buffer of the given format as an image. The buffer is copied.
// R_FLOAT32 buffers are rendered with the grayscale depth map.
func FromData(data []byte, width, height int, format msgs.PixelFormatType) (image.Image, error) {
	bpp := int(BytesPerPixel(format))
	if bpp == 0 {
		return nil, errors.Wrapf(ErrUnsupportedPixelFormat, "%s", format)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", width, height)
	}
	if need := width * height * bpp; len(data) < need {
		return nil, errors.Errorf("buffer too short for %dx%d %s: have %d bytes, need %d", width, height, format, len(data), need)
	}
	rect := image.Rect(0, 0, width, height)

	switch format {
	case msgs.LInt8:
		img := image.NewGray(rect)
		copy(img.Pix, data)
		return img, nil
	case msgs.LInt16:
		img := image.NewGray16(rect)
		for i := 0; i < width*height; i++ {
			// message buffers are little-endian, image.Gray16 is big-endian
			img.SetGray16(i%width, i/width, color.Gray16{Y: binary.LittleEndian.Uint16(data[i*2:])})
		}
		return img, nil
	case msgs.RGBInt8, msgs.BGRInt8:
		img := image.NewRGBA(rect)
		for i := 0; i < width*height; i++ {
			r, g, b := data[i*3], data[i*3+1], data[i*3+2]
			if format == msgs.BGRInt8 {
				r, b = b, r
			}
			img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = r, g, b, 0xff
		}
		return img, nil
	case msgs.RGBAInt8, msgs.BGRAInt8:
		img := image.NewNRGBA(rect)
		copy(img.Pix, data)
		if format == msgs.BGRAInt8 {
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
			}
		}
		return img, nil
	case msgs.RFloat32:
		dm, err := DepthMapFromData(rendering.BytesToFloat32(data[:width*height*4]), width, height)
		if err != nil {
			return nil, err
		}
		return dm.ToGrayscale(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedPixelFormat, "%s", format)
	}
}

// FromMessage converts an image message.
func FromMessage(msg *msgs.Image) (image.Image, error) {
	if msg == nil {
		return nil, errors.New("nil image message")
	}
	return FromData(msg.Data, int(msg.Width), int(msg.Height), msg.PixelFormatType)
}
