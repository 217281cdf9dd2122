package rimage

import (
	"bufio"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	goutils "go.viam.com/utils"
	"golang.org/x/image/tiff"
)

// Encoding is an image file format.
type Encoding string

// The supported encodings.
const (
	EncodingPNG  = Encoding("png")
	EncodingQOI  = Encoding("qoi")
	EncodingPPM  = Encoding("ppm")
	EncodingTIFF = Encoding("tiff")
)

// ParseEncoding parses an encoding name. The empty name is png.
func ParseEncoding(name string) (Encoding, error) {
	switch enc := Encoding(strings.ToLower(name)); enc {
	case "", EncodingPNG:
		return EncodingPNG, nil
	case EncodingQOI, EncodingPPM, EncodingTIFF:
		return enc, nil
	case "tif":
		return EncodingTIFF, nil
	default:
		return "", errors.Errorf("unknown image encoding %q", name)
	}
}

// Extension returns the file extension including the dot.
func (e Encoding) Extension() string {
	if e == "" {
		return ".png"
	}
	return "." + string(e)
}

// EncodeImage writes img to w.
func EncodeImage(w io.Writer, img image.Image, enc Encoding) error {
	switch enc {
	case "", EncodingPNG:
		return png.Encode(w, img)
	case EncodingQOI:
		return qoi.Encode(w, img)
	case EncodingPPM:
		return ppm.Encode(w, img)
	case EncodingTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.Errorf("unknown image encoding %q", enc)
	}
}

// SaveImage writes img to path, creating parent directories as needed.
func SaveImage(path string, img image.Image, enc Encoding) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrapf(err, "cannot create directory for %s", path)
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	w := bufio.NewWriter(f)
	if err := EncodeImage(w, img, enc); err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	return w.Flush()
}

// ReadImageFromFile decodes any registered image format.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// Resize scales img to width, keeping the aspect ratio. A non-positive or unchanged width
// returns img.
func Resize(img image.Image, width int) image.Image {
	if width <= 0 || width == img.Bounds().Dx() {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}
