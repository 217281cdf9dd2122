// Package transform holds camera models: pinhole intrinsics, projection matrices and lens
// distortion.
package transform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
	Skew   float64 `json:"skew,omitempty"`
}

// IntrinsicsFromHFOV derives intrinsics for an ideal pinhole with square pixels and the principal
// point at the image center.
func IntrinsicsFromHFOV(width, height int, hfov float64) *PinholeCameraIntrinsics {
	f := float64(width) / (2 * math.Tan(hfov/2))
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     f,
		Fy:     f,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint back-projects a pixel at depth z into the optical frame.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	return (x - params.Ppx) / params.Fx * z, (y - params.Ppy) / params.Fy * z, z
}

// PointToPixel projects a point in the optical frame to a pixel.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	// behind or on the image plane: return coordinates that bounds checks reject
	return -1.0, -1.0
}

// CameraMatrix returns K:
//
//	[[fx  s ppx],
//	 [ 0 fy ppy],
//	 [ 0  0   1]]
func (params *PinholeCameraIntrinsics) CameraMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, params.Skew, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// ProjectionMatrix returns P = K [I | t] for a camera translated by (tx, ty) in the image
// plane, as used by stereo pairs. A monocular camera uses tx = ty = 0.
func (params *PinholeCameraIntrinsics) ProjectionMatrix(tx, ty float64) *mat.Dense {
	extrinsics := mat.NewDense(3, 4, []float64{
		1, 0, 0, tx,
		0, 1, 0, ty,
		0, 0, 1, 0,
	})
	var p mat.Dense
	p.Mul(params.CameraMatrix(), extrinsics)
	return &p
}

// RectificationIdentity returns the identity rectification matrix of a monocular camera.
func RectificationIdentity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// RowMajor9 flattens a 3x3 matrix.
func RowMajor9(m mat.Matrix) [9]float64 {
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = m.At(i, j)
		}
	}
	return out
}

// RowMajor12 flattens a 3x4 matrix.
func RowMajor12(m mat.Matrix) [12]float64 {
	var out [12]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = m.At(i, j)
		}
	}
	return out
}
