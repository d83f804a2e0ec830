// Package model wraps the trained fraud classifier: artifact loading, scaling
// and the forward pass, plus a deterministic post-hoc explanation pass.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/opensource-travel/cormorant/internal/domain"
	"github.com/opensource-travel/cormorant/internal/features"
)

// Artifact file names inside the bundle directory.
const (
	networkFile      = "model.json"
	scalerFile       = "scaler.json"
	featureNamesFile = "feature_names.json"
)

// Layer is one dense layer of the exported network. Weights is laid out
// [output][input].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"` // "relu", "sigmoid", "linear"
}

type network struct {
	Version string  `json:"version"`
	Layers  []Layer `json:"layers"`
}

type scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Bundle is the immutable trained-model artifact set: network weights, the
// fitted standard scaler, and the feature ordering the model was trained
// with. Loaded once at startup and shared read-only across requests, so
// concurrent inference needs no locking.
type Bundle struct {
	order   features.Order
	layers  []Layer
	mean    []float64
	scale   []float64
	version string
}

// Load reads a bundle from dir. A missing directory or missing artifact
// returns ErrModelUnavailable so callers can degrade to rule-based scoring;
// a present-but-corrupt artifact is reported the same way with the parse
// error attached.
func Load(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, domain.ErrModelUnavailable
	}

	var net network
	if err := readJSON(filepath.Join(dir, networkFile), &net); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	var sc scaler
	if err := readJSON(filepath.Join(dir, scalerFile), &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	var order features.Order
	if err := readJSON(filepath.Join(dir, featureNamesFile), &order); err != nil {
		// The ordering contract is optional on disk; fall back to the
		// ordering the shipped model was trained with.
		order = features.DefaultOrder()
	}

	b := &Bundle{
		order:   order,
		layers:  net.Layers,
		mean:    sc.Mean,
		scale:   sc.Scale,
		version: net.Version,
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	return b, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// validate checks that the artifacts agree with each other. A bundle whose
// scaler or first layer disagrees with the feature count would misalign the
// vector and produce silently wrong scores.
func (b *Bundle) validate() error {
	n := len(b.order.Names)
	if n == 0 {
		return fmt.Errorf("empty feature order")
	}
	if len(b.mean) != n || len(b.scale) != n {
		return fmt.Errorf("scaler dimensions %d/%d do not match %d features",
			len(b.mean), len(b.scale), n)
	}
	for i, s := range b.scale {
		if s == 0 {
			return fmt.Errorf("scaler has zero scale at index %d", i)
		}
	}
	if len(b.layers) == 0 {
		return fmt.Errorf("network has no layers")
	}

	in := n
	for i, layer := range b.layers {
		if len(layer.Weights) == 0 || len(layer.Weights) != len(layer.Bias) {
			return fmt.Errorf("layer %d: weight rows %d do not match bias %d",
				i, len(layer.Weights), len(layer.Bias))
		}
		for _, row := range layer.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d: expected %d inputs, got %d", i, in, len(row))
			}
		}
		in = len(layer.Weights)
	}
	if in != 1 {
		return fmt.Errorf("network must end in a single sigmoid output, got %d", in)
	}
	last := b.layers[len(b.layers)-1]
	if last.Activation != "sigmoid" {
		return fmt.Errorf("output activation must be sigmoid, got %q", last.Activation)
	}
	return nil
}

// Order returns the feature ordering the bundle was trained with.
func (b *Bundle) Order() features.Order {
	return b.order
}

// Version returns the exported network version string.
func (b *Bundle) Version() string {
	return b.version
}

// Transform applies the fitted standard scaler to a raw feature vector.
func (b *Bundle) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(b.mean) {
		return nil, fmt.Errorf("vector length %d does not match scaler %d", len(vec), len(b.mean))
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = (v - b.mean[i]) / b.scale[i]
	}
	return out, nil
}

// Predict runs the forward pass over an already scaled vector and returns
// the sigmoid output as a fraud probability.
func (b *Bundle) Predict(vec []float64) (float64, error) {
	cur := vec
	for i, layer := range b.layers {
		next := make([]float64, len(layer.Weights))
		for j, row := range layer.Weights {
			if len(row) != len(cur) {
				return 0, fmt.Errorf("layer %d: expected %d inputs, got %d", i, len(row), len(cur))
			}
			sum := layer.Bias[j]
			for k, w := range row {
				sum += w * cur[k]
			}
			next[j] = activate(layer.Activation, sum)
		}
		cur = next
	}
	if len(cur) != 1 {
		return 0, fmt.Errorf("network produced %d outputs, expected 1", len(cur))
	}
	return cur[0], nil
}

func activate(name string, x float64) float64 {
	switch name {
	case "relu":
		return math.Max(0, x)
	case "sigmoid":
		return 1 / (1 + math.Exp(-x))
	default:
		return x
	}
}
