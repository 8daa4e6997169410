// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/model"
)

// MockOptions describe the simulated sensor error.
type MockOptions struct {
	Bias     imu.Vec3
	Coupling []float64 // row-major 3x3; nil means identity
	Noise    float64   // standard deviation of white noise, in g
	Seed     uint64
}

// DefaultMock is a slightly biased, slightly misaligned sensor.
var DefaultMock = MockOptions{
	Bias: imu.Vec3{X: 0.012, Y: -0.0098, Z: 0.0205},
	Coupling: []float64{
		1.0021, -0.0031, 0.0072,
		0.0045, 0.9931, -0.0052,
		-0.0081, 0.0066, 1.0104,
	},
	Noise: 0.004,
	Seed:  1,
}

// Mock produces readings of a fixed true acceleration through the tier-3
// error model plus Gaussian noise. It is deterministic for a given seed.
type Mock struct {
	mu       sync.Mutex
	truth    imu.Vec3
	bias     imu.Vec3
	coupling *mat.Dense
	noise    float64
	rng      *rand.Rand
}

// NewMock creates a mock lying flat (Z up).
func NewMock(opts MockOptions) *Mock {
	c := opts.Coupling
	if c == nil {
		c = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
	return &Mock{
		truth:    imu.Vec3{Z: 1},
		bias:     opts.Bias,
		coupling: mat.NewDense(3, 3, append([]float64(nil), c...)),
		noise:    opts.Noise,
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// SetTruth changes the simulated orientation (gravity vector in g).
func (m *Mock) SetTruth(v imu.Vec3) {
	m.mu.Lock()
	m.truth = v
	m.mu.Unlock()
}

func (m *Mock) Next() (imu.Vec3, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := model.MisalignmentForwardBatch(m.bias, m.coupling, []imu.Vec3{m.truth})[0]
	if m.noise > 0 {
		v.X += m.noise * m.rng.NormFloat64()
		v.Y += m.noise * m.rng.NormFloat64()
		v.Z += m.noise * m.rng.NormFloat64()
	}
	return v, nil
}

func (m *Mock) String() string { return "mock" }
