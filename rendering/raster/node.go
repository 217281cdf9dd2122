package raster

import (
	"sort"
	"sync"

	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/spatialmath"
)

type parented interface {
	setParent(*Visual)
}

type baseNode struct {
	name string

	poseMu sync.RWMutex
	pose   spatialmath.Pose
	parent *Visual
}

func newBaseNode(name string) baseNode {
	return baseNode{name: name, pose: spatialmath.NewZeroPose()}
}

// Name returns the node name.
func (n *baseNode) Name() string {
	return n.name
}

// LocalPose returns the pose relative to the parent visual.
func (n *baseNode) LocalPose() spatialmath.Pose {
	n.poseMu.RLock()
	defer n.poseMu.RUnlock()
	return n.pose
}

// SetLocalPose sets the pose relative to the parent visual.
func (n *baseNode) SetLocalPose(p spatialmath.Pose) {
	n.poseMu.Lock()
	defer n.poseMu.Unlock()
	n.pose = p
}

// WorldPose composes the poses of every ancestor.
func (n *baseNode) WorldPose() spatialmath.Pose {
	n.poseMu.RLock()
	pose, parent := n.pose, n.parent
	n.poseMu.RUnlock()
	if parent == nil {
		return pose
	}
	return parent.WorldPose().Compose(pose)
}

func (n *baseNode) setParent(v *Visual) {
	n.poseMu.Lock()
	defer n.poseMu.Unlock()
	n.parent = v
}

// Visual groups child nodes under a common pose.
type Visual struct {
	baseNode

	mu       sync.Mutex
	children map[string]rendering.Node
}

// NewVisual returns an empty visual.
func NewVisual(name string) *Visual {
	return &Visual{baseNode: newBaseNode(name), children: map[string]rendering.Node{}}
}

// AddChild attaches child, replacing any child with the same name.
func (v *Visual) AddChild(child rendering.Node) {
	if child == nil {
		return
	}
	v.mu.Lock()
	v.children[child.Name()] = child
	v.mu.Unlock()
	if p, ok := child.(parented); ok {
		p.setParent(v)
	}
}

// RemoveChild detaches child if it is attached.
func (v *Visual) RemoveChild(child rendering.Node) {
	if child == nil {
		return
	}
	v.mu.Lock()
	existing, ok := v.children[child.Name()]
	if ok && existing == child {
		delete(v.children, child.Name())
	}
	v.mu.Unlock()
	if ok && existing == child {
		if p, isParented := child.(parented); isParented {
			p.setParent(nil)
		}
	}
}

// HasChild reports whether child is attached.
func (v *Visual) HasChild(child rendering.Node) bool {
	if child == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	existing, ok := v.children[child.Name()]
	return ok && existing == child
}

// ChildCount returns the number of attached children.
func (v *Visual) ChildCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.children)
}

// ChildNames returns the names of the attached children, sorted.
func (v *Visual) ChildNames() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	names := make([]string, 0, len(v.children))
	for name := range v.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
