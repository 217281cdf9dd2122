package noise

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/stat"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
)

func TestGaussianStatistics(t *testing.T) {
	m := NewGaussianModel(config.Noise{Type: "gaussian", Mean: 0.5, StdDev: 0.1})
	test.That(t, m.Type(), test.ShouldEqual, TypeGaussian)
	test.That(t, m.Bias(), test.ShouldEqual, 0)

	samples := make([]float64, 20000)
	for i := range samples {
		samples[i] = m.Apply(1)
	}
	mean, std := stat.MeanStdDev(samples, nil)
	test.That(t, mean, test.ShouldAlmostEqual, 1.5, 0.01)
	test.That(t, std, test.ShouldAlmostEqual, 0.1, 0.01)
}

func TestGaussianBiasAndQuantization(t *testing.T) {
	m := NewGaussianModel(config.Noise{Type: "gaussian_quantized", BiasMean: 0.25, Precision: 0.5})
	test.That(t, m.Type(), test.ShouldEqual, TypeGaussianQuantized)
	test.That(t, math.Abs(m.Bias()), test.ShouldEqual, 0.25)

	// no stddev: the output is deterministic
	out := m.Apply(1)
	expected := math.Round((1+m.Bias())/0.5) * 0.5
	test.That(t, out, test.ShouldEqual, expected)
}

func TestImageGaussianClamps(t *testing.T) {
	m := NewImageGaussianModel(config.Noise{Mean: 1})
	buf := []byte{0, 100, 255}
	m.ApplyImage(buf)
	test.That(t, buf, test.ShouldResemble, []byte{255, 255, 255})

	m = NewImageGaussianModel(config.Noise{Mean: -1})
	m.ApplyImage(buf)
	test.That(t, buf, test.ShouldResemble, []byte{0, 0, 0})

	m = NewImageGaussianModel(config.Noise{})
	buf = []byte{1, 2, 3}
	m.ApplyImage(buf)
	test.That(t, buf, test.ShouldResemble, []byte{1, 2, 3})
}

func TestNewModel(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)

	test.That(t, NewModel(nil, config.SensorTypeCamera, logger), test.ShouldBeNil)
	test.That(t, NewModel(&config.Noise{Type: "none"}, config.SensorTypeCamera, logger), test.ShouldBeNil)

	m := NewModel(&config.Noise{Type: "gaussian", StdDev: 0.01}, config.SensorTypeCamera, logger)
	_, isImage := m.(ImageModel)
	test.That(t, isImage, test.ShouldBeTrue)

	test.That(t, NewModel(&config.Noise{Type: "gaussian_quantized"}, config.SensorTypeCamera, logger), test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("only supports Gaussian noise").Len(), test.ShouldEqual, 1)

	m = NewModel(&config.Noise{Type: "gaussian_quantized", Precision: 1}, config.SensorTypeDepthCamera, logger)
	test.That(t, m.Type(), test.ShouldEqual, TypeGaussianQuantized)

	test.That(t, NewModel(&config.Noise{Type: "perlin"}, config.SensorTypeDepthCamera, logger), test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("unknown noise type").Len(), test.ShouldEqual, 1)
}
