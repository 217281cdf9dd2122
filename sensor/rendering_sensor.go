package sensor

import (
	"sync"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/transport"
)

// RenderingBase is a Base that also tracks the scene it renders in.
type RenderingBase struct {
	Base

	sceneMu sync.RWMutex
	scene   rendering.Scene
}

// NewRenderingBase returns an unloaded rendering base for scene, which may be nil.
func NewRenderingBase(bus *transport.Bus, scene rendering.Scene, logger logging.Logger) RenderingBase {
	return RenderingBase{Base: NewBase(bus, logger), scene: scene}
}

// Scene returns the current scene, nil if none was set.
func (r *RenderingBase) Scene() rendering.Scene {
	r.sceneMu.RLock()
	defer r.sceneMu.RUnlock()
	return r.scene
}

// SwapScene stores scene and returns the previous one. changed is false when scene is the one
// already stored.
func (r *RenderingBase) SwapScene(scene rendering.Scene) (old rendering.Scene, changed bool) {
	r.sceneMu.Lock()
	defer r.sceneMu.Unlock()
	if r.scene == scene {
		return r.scene, false
	}
	old = r.scene
	r.scene = scene
	return old, true
}
