// Package raster is a software renderer that casts one pinhole ray per pixel against spheres,
// boxes and planes. It implements the rendering interfaces for simulation without a GPU.
package raster

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
)

// Scene defaults.
const (
	DefaultAmbient    = 0.2
	DefaultBackground = "#000000"
	DefaultColor      = "#c0c0c0"
)

// ErrDuplicateName is returned when adding a sensor or object whose name is taken.
var ErrDuplicateName = errors.New("name already in use")

// Object is a coloured shape in the scene.
type Object struct {
	Name  string
	Shape Shape
	Color colorful.Color
}

// Scene is a set of objects plus the sensors rendering them.
type Scene struct {
	name    string
	logger  logging.Logger
	root    *Visual
	workers int

	mu         sync.RWMutex
	objects    []Object
	background colorful.Color
	ambient    float64
	lightDir   r3.Vector
	lightPower float64
	sensors    map[string]rendering.Node
}

// NewScene returns an empty scene lit from straight above.
func NewScene(name string, logger logging.Logger) *Scene {
	bg, _ := colorful.Hex(DefaultBackground)
	return &Scene{
		name:       name,
		logger:     logger,
		root:       NewVisual("root"),
		workers:    runtime.GOMAXPROCS(0),
		background: bg,
		ambient:    DefaultAmbient,
		lightDir:   r3.Vector{Z: -1},
		lightPower: 1,
		sensors:    map[string]rendering.Node{},
	}
}

// NewSceneFromConfig builds a scene from its configuration.
func NewSceneFromConfig(cfg config.SceneConfig, logger logging.Logger) (*Scene, error) {
	if err := cfg.Validate("scene"); err != nil {
		return nil, err
	}
	s := NewScene(cfg.Name, logger)
	if cfg.Background != "" {
		bg, err := colorful.Hex(cfg.Background)
		if err != nil {
			return nil, err
		}
		s.background = bg
	}
	if cfg.Ambient > 0 {
		s.ambient = cfg.Ambient
	}
	if cfg.Light != nil {
		s.lightDir = r3.Vector{X: cfg.Light.Direction[0], Y: cfg.Light.Direction[1], Z: cfg.Light.Direction[2]}.Normalize()
		if cfg.Light.Intensity > 0 {
			s.lightPower = cfg.Light.Intensity
		}
	}
	for _, oc := range cfg.Objects {
		obj, err := objectFromConfig(oc)
		if err != nil {
			return nil, err
		}
		if err := s.AddObject(obj); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func objectFromConfig(oc config.Object) (Object, error) {
	hex := oc.Color
	if hex == "" {
		hex = DefaultColor
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return Object{}, errors.Wrapf(err, "object %s", oc.Name)
	}
	obj := Object{Name: oc.Name, Color: c}
	switch oc.Type {
	case config.ObjectSphere:
		obj.Shape = Sphere{Center: oc.Pose.Point, Radius: oc.Radius}
	case config.ObjectBox:
		obj.Shape = Box{Pose: oc.Pose, Size: r3.Vector{X: oc.Size[0], Y: oc.Size[1], Z: oc.Size[2]}}
	case config.ObjectPlane:
		normal := r3.Vector{Z: 1}
		if len(oc.Normal) == 3 {
			normal = r3.Vector{X: oc.Normal[0], Y: oc.Normal[1], Z: oc.Normal[2]}
		}
		obj.Shape = Plane{Point: oc.Pose.Point, Normal: oc.Pose.Rotate(normal)}
	default:
		return Object{}, errors.Errorf("object %s has unknown type %q", oc.Name, oc.Type)
	}
	return obj, nil
}

// Name returns the scene name.
func (s *Scene) Name() string {
	return s.name
}

// RootVisual returns the visual every sensor is attached under.
func (s *Scene) RootVisual() rendering.Visual {
	return s.root
}

// SetWorkers limits how many rows render in parallel.
func (s *Scene) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// AddObject adds an object. Names must be unique.
func (s *Scene) AddObject(obj Object) error {
	if obj.Shape == nil {
		return errors.Errorf("object %s has no shape", obj.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.objects {
		if existing.Name == obj.Name {
			return errors.Wrapf(ErrDuplicateName, "object %s", obj.Name)
		}
	}
	s.objects = append(s.objects, obj)
	return nil
}

// RemoveObject removes the named object and reports whether it existed.
func (s *Scene) RemoveObject(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.objects {
		if existing.Name == name {
			s.objects = append(s.objects[:i:i], s.objects[i+1:]...)
			return true
		}
	}
	return false
}

// ObjectNames returns the object names in insertion order.
func (s *Scene) ObjectNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.objects))
	for i, o := range s.objects {
		names[i] = o.Name
	}
	return names
}

// SensorNames returns the names of live sensors, sorted.
func (s *Scene) SensorNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sensors))
	for name := range s.sensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateCamera creates a colour camera. It is not attached to any visual.
func (s *Scene) CreateCamera(name string) (rendering.Camera, error) {
	cam := newCamera(s, name)
	if err := s.addSensor(name, cam); err != nil {
		return nil, err
	}
	return cam, nil
}

// CreateDepthCamera creates a depth camera. It is not attached to any visual.
func (s *Scene) CreateDepthCamera(name string) (rendering.DepthCamera, error) {
	cam := newDepthCamera(s, name)
	if err := s.addSensor(name, cam); err != nil {
		return nil, err
	}
	return cam, nil
}

func (s *Scene) addSensor(name string, node rendering.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sensors[name]; ok {
		return errors.Wrapf(ErrDuplicateName, "sensor %s", name)
	}
	s.sensors[name] = node
	s.logger.Debugw("created sensor", "scene", s.name, "sensor", name)
	return nil
}

// DestroySensor removes a sensor created by this scene and detaches it from the root visual.
func (s *Scene) DestroySensor(node rendering.Node) error {
	if node == nil {
		return errors.Wrap(rendering.ErrUnknownNode, "nil node")
	}
	s.mu.Lock()
	existing, ok := s.sensors[node.Name()]
	if ok && existing == node {
		delete(s.sensors, node.Name())
	}
	s.mu.Unlock()
	if !ok || existing != node {
		return errors.Wrapf(rendering.ErrUnknownNode, "%s in scene %s", node.Name(), s.name)
	}
	s.root.RemoveChild(node)
	s.logger.Debugw("destroyed sensor", "scene", s.name, "sensor", node.Name())
	return nil
}

// trace returns the closest hit along the ray.
func (s *Scene) trace(objects []Object, origin, dir r3.Vector, tMin, tMax float64) (Hit, *Object, bool) {
	var best Hit
	var bestObj *Object
	closest := tMax
	for i := range objects {
		if h, ok := objects[i].Shape.Hit(origin, dir, tMin, closest); ok {
			best, bestObj, closest = h, &objects[i], h.T
		}
	}
	return best, bestObj, bestObj != nil
}

// lighting is a snapshot of the scene state a frame renders with.
type lighting struct {
	objects    []Object
	background colorful.Color
	ambient    float64
	lightDir   r3.Vector
	lightPower float64
}

func (s *Scene) snapshot() lighting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lighting{
		objects:    append([]Object(nil), s.objects...),
		background: s.background,
		ambient:    s.ambient,
		lightDir:   s.lightDir,
		lightPower: s.lightPower,
	}
}

// shade returns the Lambertian colour of a hit seen along dir.
func (l lighting) shade(obj *Object, h Hit, dir r3.Vector) colorful.Color {
	n := h.Normal
	if n.Dot(dir) > 0 {
		n = n.Mul(-1)
	}
	lambert := math.Max(0, n.Dot(l.lightDir.Mul(-1)))
	intensity := math.Min(1, l.ambient+(1-l.ambient)*lambert*l.lightPower)
	return colorful.Color{}.BlendLab(obj.Color, intensity).Clamped()
}
