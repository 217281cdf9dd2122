package rimage

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/robosim/sensors/msgs"
	"github.com/robosim/sensors/rendering"
)

func TestMaskDepth(t *testing.T) {
	buf := []float32{0.1, 0.3, 0.5, 9.99, 10, 12, float32(math.Inf(1))}
	MaskDepth(buf, 0.3, 10)
	test.That(t, math.IsInf(float64(buf[0]), -1), test.ShouldBeTrue)
	test.That(t, math.IsInf(float64(buf[1]), -1), test.ShouldBeTrue)
	test.That(t, buf[2], test.ShouldEqual, float32(0.5))
	test.That(t, buf[3], test.ShouldEqual, float32(9.99))
	test.That(t, math.IsInf(float64(buf[4]), 1), test.ShouldBeTrue)
	test.That(t, math.IsInf(float64(buf[5]), 1), test.ShouldBeTrue)
	test.That(t, math.IsInf(float64(buf[6]), 1), test.ShouldBeTrue)

	MaskDepth(nil, 0, 1)
}

func TestMaskDepthAtClipDistances(t *testing.T) {
	// neither 0.3 nor 0.7 is exact in float32; samples equal to them are still masked
	buf := []float32{0.3, 0.7, 0.5}
	MaskDepth(buf, 0.3, 0.7)
	test.That(t, math.IsInf(float64(buf[0]), -1), test.ShouldBeTrue)
	test.That(t, math.IsInf(float64(buf[1]), 1), test.ShouldBeTrue)
	test.That(t, buf[2], test.ShouldEqual, float32(0.5))
}

func TestConvertPixelFormat(t *testing.T) {
	test.That(t, ConvertPixelFormat("R8G8B8"), test.ShouldEqual, msgs.RGBInt8)
	test.That(t, ConvertPixelFormat("rgb_int8"), test.ShouldEqual, msgs.RGBInt8)
	test.That(t, ConvertPixelFormat("L8"), test.ShouldEqual, msgs.LInt8)
	test.That(t, ConvertPixelFormat("B8G8R8"), test.ShouldEqual, msgs.BGRInt8)
	test.That(t, ConvertPixelFormat("R_FLOAT32"), test.ShouldEqual, msgs.RFloat32)
	test.That(t, ConvertPixelFormat("BAYER_RGGB8"), test.ShouldEqual, msgs.BayerRGGB8)
	test.That(t, ConvertPixelFormat("YUV"), test.ShouldEqual, msgs.UnknownPixelFormat)

	test.That(t, BytesPerPixel(msgs.RGBInt8), test.ShouldEqual, 3)
	test.That(t, BytesPerPixel(msgs.RFloat32), test.ShouldEqual, 4)
	test.That(t, BytesPerPixel(msgs.RGBFloat32), test.ShouldEqual, 12)
	test.That(t, BytesPerPixel(msgs.UnknownPixelFormat), test.ShouldEqual, 0)
}

func TestFromData(t *testing.T) {
	rgb := []byte{255, 0, 0, 0, 0, 255}
	img, err := FromData(rgb, 2, 1, msgs.RGBInt8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, color.RGBAModel.Convert(img.At(0, 0)), test.ShouldResemble, color.RGBA{255, 0, 0, 255})

	img, err = FromData(rgb, 2, 1, msgs.BGRInt8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, color.RGBAModel.Convert(img.At(0, 0)), test.ShouldResemble, color.RGBA{0, 0, 255, 255})
	test.That(t, color.RGBAModel.Convert(img.At(1, 0)), test.ShouldResemble, color.RGBA{255, 0, 0, 255})

	gray, err := FromData([]byte{7, 9}, 2, 1, msgs.LInt8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gray.(*image.Gray).Pix, test.ShouldResemble, []byte{7, 9})

	gray16, err := FromData([]byte{0x34, 0x12}, 1, 1, msgs.LInt16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gray16.(*image.Gray16).Gray16At(0, 0).Y, test.ShouldEqual, 0x1234)

	depth, err := FromData(rendering.Float32ToBytes(nil, []float32{1, 2}), 2, 1, msgs.RFloat32)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depth.(*image.Gray).Pix, test.ShouldResemble, []byte{128, 0})

	_, err = FromData(rgb, 2, 1, msgs.RGBFloat16)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromData(rgb, 2, 1, msgs.UnknownPixelFormat)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromData(rgb, 3, 1, msgs.RGBInt8)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromMessage(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthGrayscale(t *testing.T) {
	inf := float32(math.Inf(1))
	negInf := float32(math.Inf(-1))
	dm, err := DepthMapFromData([]float32{4, 2, inf, negInf}, 2, 2)
	test.That(t, err, test.ShouldBeNil)

	minD, maxD, ok := dm.MinMax()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, minD, test.ShouldEqual, float32(2))
	test.That(t, maxD, test.ShouldEqual, float32(4))

	img := dm.ToGrayscale()
	test.That(t, img.Pix, test.ShouldResemble, []byte{0, 128, 0, 255})

	_, _, ok = NewEmptyDepthMap(0, 0).MinMax()
	test.That(t, ok, test.ShouldBeFalse)
	_, err = DepthMapFromData([]float32{1}, 2, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthColorMaps(t *testing.T) {
	buf := []float32{1, 2, 3, float32(math.Inf(1))}
	for _, cm := range []ColorMap{ColorMapGrayscale, ColorMapMoreland, ColorMapHue} {
		img, err := DepthToImage(buf, 2, 2, cm)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 2))
	}

	moreland, err := DepthToImage(buf, 2, 2, ColorMapMoreland)
	test.That(t, err, test.ShouldBeNil)
	_, _, _, a := moreland.At(1, 1).RGBA()
	test.That(t, a, test.ShouldEqual, 0)
	near := color.NRGBAModel.Convert(moreland.At(0, 0)).(color.NRGBA)
	far := color.NRGBAModel.Convert(moreland.At(0, 1)).(color.NRGBA)
	test.That(t, near.B, test.ShouldBeGreaterThan, near.R)
	test.That(t, far.R, test.ShouldBeGreaterThan, far.B)

	_, err = DepthToImage(buf, 2, 2, ColorMap("plasma"))
	test.That(t, err, test.ShouldNotBeNil)

	cm, err := ParseColorMap("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm, test.ShouldEqual, ColorMapGrayscale)
	_, err = ParseColorMap("plasma")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEncodings(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 5)
	}
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0xff
	}

	dir := t.TempDir()
	for _, name := range []string{"", "png", "qoi", "ppm", "tiff"} {
		enc, err := ParseEncoding(name)
		test.That(t, err, test.ShouldBeNil)

		var buf bytes.Buffer
		test.That(t, EncodeImage(&buf, src, enc), test.ShouldBeNil)
		test.That(t, buf.Len(), test.ShouldBeGreaterThan, 0)

		path := filepath.Join(dir, "nested", "frame"+enc.Extension())
		test.That(t, SaveImage(path, src, enc), test.ShouldBeNil)
		back, err := ReadImageFromFile(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Bounds(), test.ShouldResemble, src.Bounds())
		r, g, b, _ := back.At(2, 1).RGBA()
		er, eg, eb, _ := src.At(2, 1).RGBA()
		test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{er >> 8, eg >> 8, eb >> 8})
	}

	_, err := ParseEncoding("gif")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, EncodeImage(&bytes.Buffer{}, src, Encoding("gif")), test.ShouldNotBeNil)
}

func TestResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	test.That(t, Resize(src, 0), test.ShouldEqual, src)
	test.That(t, Resize(src, 40), test.ShouldEqual, src)
	test.That(t, Resize(src, 10).Bounds(), test.ShouldResemble, image.Rect(0, 0, 10, 5))
}
