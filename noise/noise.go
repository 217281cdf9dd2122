// Package noise implements additive sensor noise models.
package noise

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
)

// Type is a noise model name.
type Type string

// The noise model types.
const (
	TypeNone              = Type("none")
	TypeGaussian          = Type("gaussian")
	TypeGaussianQuantized = Type("gaussian_quantized")
)

// ParseType parses a noise type name. The empty name is none.
func ParseType(name string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(name))); t {
	case "":
		return TypeNone
	default:
		return t
	}
}

// Model perturbs a single value.
type Model interface {
	Type() Type
	Apply(v float64) float64
}

// GaussianModel adds normally distributed noise plus a constant bias.
type GaussianModel struct {
	typ       Type
	noise     distuv.Normal
	bias      float64
	precision float64
}

// NewGaussianModel builds a model from cfg. The bias is drawn once from
// N(BiasMean, BiasStdDev) and given a random sign.
func NewGaussianModel(cfg config.Noise) *GaussianModel {
	m := &GaussianModel{
		typ:   TypeGaussian,
		noise: distuv.Normal{Mu: cfg.Mean, Sigma: cfg.StdDev},
	}
	if cfg.BiasMean != 0 || cfg.BiasStdDev != 0 {
		m.bias = cfg.BiasMean
		if cfg.BiasStdDev > 0 {
			m.bias = distuv.Normal{Mu: cfg.BiasMean, Sigma: cfg.BiasStdDev}.Rand()
		}
		if (distuv.Bernoulli{P: 0.5}).Rand() == 1 {
			m.bias = -m.bias
		}
	}
	if ParseType(cfg.Type) == TypeGaussianQuantized && cfg.Precision > 0 {
		m.typ = TypeGaussianQuantized
		m.precision = cfg.Precision
	}
	return m
}

// Type returns TypeGaussian or TypeGaussianQuantized.
func (m *GaussianModel) Type() Type {
	return m.typ
}

// Bias returns the constant offset chosen at construction.
func (m *GaussianModel) Bias() float64 {
	return m.bias
}

// Apply returns v plus noise and bias, rounded to the precision if quantized.
func (m *GaussianModel) Apply(v float64) float64 {
	out := v + m.sample() + m.bias
	if m.precision > 0 {
		out = math.Round(out/m.precision) * m.precision
	}
	return out
}

func (m *GaussianModel) sample() float64 {
	if m.noise.Sigma == 0 {
		return m.noise.Mu
	}
	return m.noise.Rand()
}

// ImageGaussianModel adds Gaussian noise to 8 bit image channels. Mean and standard deviation
// are in normalized intensity, so 0.01 is about 2.5 levels.
type ImageGaussianModel struct {
	*GaussianModel
}

// NewImageGaussianModel builds an image model from cfg. Bias and quantization do not apply to
// images.
func NewImageGaussianModel(cfg config.Noise) *ImageGaussianModel {
	return &ImageGaussianModel{GaussianModel: &GaussianModel{
		typ:   TypeGaussian,
		noise: distuv.Normal{Mu: cfg.Mean, Sigma: cfg.StdDev},
	}}
}

// ApplyImage perturbs every byte of buf in place, clamping to 0..255.
func (m *ImageGaussianModel) ApplyImage(buf []byte) {
	for i, b := range buf {
		v := float64(b) + 255*m.sample()
		buf[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
}

// ImageModel is implemented by models that can perturb a whole image buffer.
type ImageModel interface {
	Model
	ApplyImage(buf []byte)
}

// NewModel returns the model for a sensor, or nil when no noise applies. Cameras only support
// Gaussian noise; any other type is logged and ignored.
func NewModel(cfg *config.Noise, sensorType string, logger logging.Logger) Model {
	if cfg == nil {
		return nil
	}
	typ := ParseType(cfg.Type)
	if typ == TypeNone {
		return nil
	}
	if sensorType == config.SensorTypeCamera {
		if typ != TypeGaussian {
			logger.Warnw("camera only supports Gaussian noise, ignoring noise model", "type", cfg.Type)
			return nil
		}
		return NewImageGaussianModel(*cfg)
	}
	switch typ {
	case TypeGaussian, TypeGaussianQuantized:
		return NewGaussianModel(*cfg)
	default:
		logger.Warnw("unknown noise type, ignoring noise model", "type", cfg.Type, "sensor_type", sensorType)
		return nil
	}
}
