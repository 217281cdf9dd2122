package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/spatialmath"
)

// Read reads a config from the given file after substituting environment variables.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from r. originalPath selects the format: .yaml and .yml files are
// YAML, anything else is JSON.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	raw, err := decodeRaw(originalPath, r)
	if err != nil {
		return nil, err
	}

	cfg := &Config{ConfigFilePath: originalPath}
	if err := decodeInto(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config %q", originalPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}
	logger.CDebugw(ctx, "read config", "path", originalPath, "sensors", len(cfg.Sensors), "objects", len(cfg.Scene.Objects))
	return cfg, nil
}

// ReadScene reads only the scene section of a config file. It is used to reload the scene
// while sensors keep running.
func ReadScene(filePath string) (*SceneConfig, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	raw, err := decodeRaw(filePath, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	var scene SceneConfig
	if err := decodeInto(raw["scene"], &scene); err != nil {
		return nil, errors.Wrap(err, "failed to decode scene")
	}
	if err := scene.Validate("scene"); err != nil {
		return nil, err
	}
	return &scene, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decodeRaw(path string, r io.Reader) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if isYAML(path) {
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "failed to decode config from yaml")
		}
		return raw, nil
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode config from json")
	}
	return raw, nil
}

// decodeInto maps a generic document onto typed structs using the json tags, so JSON and YAML
// share one schema. Unknown keys are errors.
func decodeInto(raw, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      out,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			poseHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

var poseType = reflect.TypeOf(spatialmath.Pose{})

// poseHook decodes [x y z (r p y)] lists and "x y z r p y" strings into poses.
func poseHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != poseType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return spatialmath.PoseFromString(v)
	case []interface{}:
		vals := make([]float64, 0, len(v))
		for i, elem := range v {
			switch n := elem.(type) {
			case float64:
				vals = append(vals, n)
			case int:
				vals = append(vals, float64(n))
			default:
				return nil, errors.Errorf("pose element %d has type %T", i, elem)
			}
		}
		return spatialmath.PoseFromSlice(vals)
	case nil:
		return spatialmath.NewZeroPose(), nil
	default:
		return nil, errors.Errorf("cannot decode pose from %s", from)
	}
}
