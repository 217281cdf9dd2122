package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
	tu "github.com/robosim/sensors/testutils"
)

const sampleConfig = "../etc/configs/camsim.yaml"

func writeConfig(t *testing.T, dir, sceneName, sensorType string) string {
	t.Helper()
	saveDir := filepath.Join(dir, "frames")
	body := fmt.Sprintf(`{
	"scene": {
		"name": %q,
		"objects": [{"name": "wall", "type": "plane", "pose": "5 0 0 0 0 0", "normal": [-1, 0, 0]}]
	},
	"sensors": [{
		"name": "cam",
		"type": %q,
		"camera": {
			"image": {"width": 8, "height": 6},
			"save": {"enabled": true, "path": %q}
		}
	}]
}`, sceneName, sensorType, saveDir)
	path := filepath.Join(dir, "config.json")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	return path
}

func runApp(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"camsim"}, args...))
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := runApp("validate", "--config", sampleConfig)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, `scene "courtyard" with 3 objects`)
	test.That(t, out, test.ShouldContainSubstring, "1 camera sensor(s)")
	test.That(t, out, test.ShouldContainSubstring, "1 depth sensor(s)")

	_, err = runApp("validate")
	test.That(t, err, test.ShouldNotBeNil)

	dir := tu.TempDir(t, "validate")
	_, err = runApp("validate", "--config", writeConfig(t, dir, "s", "gpu_lidar"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown type "gpu_lidar"`)
}

func TestRun(t *testing.T) {
	dir := tu.TempDir(t, "run")
	path := writeConfig(t, dir, "s", "camera")

	_, err := runApp("run", "--config", path, "--step", "0s")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = runApp("run", "--config", path, "--color-map", "rainbow")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp("run", "--config", path, "--step", "10ms", "--duration", "300ms", "--watch")
	test.That(t, err, test.ShouldBeNil)
	frames := tu.ListFiles(t, filepath.Join(dir, "frames"))
	test.That(t, len(frames), test.ShouldBeGreaterThan, 0)
	test.That(t, frames, test.ShouldContain, "cam_0.png")
}

type recordingSetter struct {
	mu     sync.Mutex
	scenes []rendering.Scene
}

func (r *recordingSetter) SetScene(s rendering.Scene) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes = append(r.scenes, s)
}

func (r *recordingSetter) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.scenes))
	for i, s := range r.scenes {
		out[i] = s.Name()
	}
	return out
}

// last returns the name of the newest scene, or "" before any.
func (r *recordingSetter) last() string {
	names := r.names()
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

func TestSceneWatcher(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	dir := tu.TempDir(t, "watch")
	path := writeConfig(t, dir, "first", "camera")

	_, err := newSceneWatcher("", &recordingSetter{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	setter := &recordingSetter{}
	w, err := newSceneWatcher(path, setter, logger)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.run(ctx)
	}()
	defer func() {
		cancel()
		test.That(t, <-done, test.ShouldBeNil)
	}()

	// other files in the directory are ignored
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600), test.ShouldBeNil)

	writeConfig(t, dir, "second", "camera")
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, setter.last(), test.ShouldEqual, "second")
	})

	failures := logs.FilterMessageSnippet("cannot reload scene").Len()
	test.That(t, os.WriteFile(path, []byte(`{"scene": {"objects": [{"name": "x", "type": "cone"}]}}`), 0o600), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, logs.FilterMessageSnippet("cannot reload scene").Len(), test.ShouldBeGreaterThan, failures)
	})
	test.That(t, setter.last(), test.ShouldEqual, "second")
}
