package testutils

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering/raster"
)

// WallDistance is how far in front of the origin the wall of NewWallScene stands.
const WallDistance = 5.0

// NewWallScene returns a raster scene with a grey wall facing a camera at the origin looking
// along +X.
func NewWallScene(t *testing.T, name string) *raster.Scene {
	t.Helper()
	s := raster.NewScene(name, logging.NewTestLogger(t))
	grey, err := colorful.Hex("#808080")
	test.That(t, err, test.ShouldBeNil)
	err = s.AddObject(raster.Object{
		Name:  "wall",
		Shape: raster.Plane{Point: r3.Vector{X: WallDistance}, Normal: r3.Vector{X: -1}},
		Color: grey,
	})
	test.That(t, err, test.ShouldBeNil)
	return s
}
