package rendering

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestPixelFormatSizes(t *testing.T) {
	test.That(t, PFR8G8B8.BytesPerPixel(), test.ShouldEqual, 3)
	test.That(t, PFL8.BytesPerPixel(), test.ShouldEqual, 1)
	test.That(t, PFR8G8B8A8.ChannelCount(), test.ShouldEqual, 4)
	test.That(t, PFFloat32R.BytesPerChannel(), test.ShouldEqual, 4)
	test.That(t, PFFloat32RGB.MemorySize(2, 3), test.ShouldEqual, 72)
	test.That(t, PFUnknown.BytesPerPixel(), test.ShouldEqual, 0)
	test.That(t, PFUnknown.Valid(), test.ShouldBeFalse)
	test.That(t, PixelFormat(42).Valid(), test.ShouldBeFalse)
	test.That(t, PixelFormat(42).Name(), test.ShouldEqual, "PixelFormat(42)")
	test.That(t, PixelFormatFromName("PF_B8G8R8"), test.ShouldEqual, PFB8G8R8)
	test.That(t, PixelFormatFromName("PF_NOPE"), test.ShouldEqual, PFUnknown)
}

func TestImageBuffers(t *testing.T) {
	img := NewImage(4, 2, PFR8G8B8)
	test.That(t, img.MemorySize(), test.ShouldEqual, 24)
	test.That(t, img.Depth(), test.ShouldEqual, 3)
	test.That(t, img.Valid(), test.ShouldBeTrue)
	test.That(t, img.Float32Data(), test.ShouldBeNil)

	empty := NewImage(4, 2, PFUnknown)
	test.That(t, empty.Valid(), test.ShouldBeFalse)

	depth := NewImage(2, 1, PFFloat32R)
	samples := []float32{1.5, float32(math.Inf(1))}
	copy(depth.Data(), Float32ToBytes(nil, samples))
	test.That(t, depth.Float32Data(), test.ShouldResemble, samples)
}
