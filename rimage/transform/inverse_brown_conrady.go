package transform

// InverseBrownConrady maps distorted normalized coordinates back to undistorted ones. Renderers
// use it to find the ray that lands on a given distorted pixel.
type InverseBrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewInverseBrownConrady takes the parameters in the order k1, k2, k3, p1, p2.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	p, err := padParameters(inp, 5)
	if err != nil {
		return nil, err
	}
	return &InverseBrownConrady{p[0], p[1], p[2], p[3], p[4]}, nil
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns k1, k2, k3, p1, p2.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return []float64{ibc.RadialK1, ibc.RadialK2, ibc.RadialK3, ibc.TangentialP1, ibc.TangentialP2}
}

// Transform solves the forward Brown-Conrady model for the undistorted point with Newton-Raphson,
// starting from the distorted point.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}
	const (
		maxIterations = 20
		tolerance     = 1e-10
	)
	k1, k2, k3 := ibc.RadialK1, ibc.RadialK2, ibc.RadialK3
	p1, p2 := ibc.TangentialP1, ibc.TangentialP2

	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		radial := 1 + k1*r2 + k2*r4 + k3*r4*r2

		errX := xu*radial + 2*p1*xu*yu + p2*(r2+2*xu*xu) - xd
		errY := yu*radial + 2*p2*xu*yu + p1*(r2+2*yu*yu) - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		dRadial := 2 * (k1 + 2*k2*r2 + 3*k3*r4)
		j11 := radial + xu*xu*dRadial + 2*p1*yu + 6*p2*xu
		j12 := xu*yu*dRadial + 2*p1*xu + 2*p2*yu
		j21 := xu*yu*dRadial + 2*p2*yu + 2*p1*xu
		j22 := radial + yu*yu*dRadial + 2*p2*xu + 6*p1*yu

		det := j11*j22 - j12*j21
		if det == 0 {
			break
		}
		xu -= (j22*errX - j12*errY) / det
		yu -= (-j21*errX + j11*errY) / det
	}
	return xu, yu
}
