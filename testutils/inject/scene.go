package inject

import (
	"github.com/robosim/sensors/rendering"
)

// Scene is an injected rendering scene.
type Scene struct {
	rendering.Scene
	CreateCameraFunc      func(name string) (rendering.Camera, error)
	CreateDepthCameraFunc func(name string) (rendering.DepthCamera, error)
	DestroySensorFunc     func(node rendering.Node) error
}

// CreateCamera calls the injected CreateCamera or the real version.
func (s *Scene) CreateCamera(name string) (rendering.Camera, error) {
	if s.CreateCameraFunc == nil {
		return s.Scene.CreateCamera(name)
	}
	return s.CreateCameraFunc(name)
}

// CreateDepthCamera calls the injected CreateDepthCamera or the real version.
func (s *Scene) CreateDepthCamera(name string) (rendering.DepthCamera, error) {
	if s.CreateDepthCameraFunc == nil {
		return s.Scene.CreateDepthCamera(name)
	}
	return s.CreateDepthCameraFunc(name)
}

// DestroySensor calls the injected DestroySensor or the real version.
func (s *Scene) DestroySensor(node rendering.Node) error {
	if s.DestroySensorFunc == nil {
		return s.Scene.DestroySensor(node)
	}
	return s.DestroySensorFunc(node)
}
