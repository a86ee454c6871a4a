// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package randvar provides random variables for benchmark workload
// generation.
package randvar

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// Static is a random variable over a fixed [min, max] range.
type Static interface {
	Uint64() uint64
}

// NewRand creates a new random number generator seeded from the global
// source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(rand.Uint64()))
}

func ensureRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return NewRand()
}

// Uniform draws from a uniform distribution over [min, max].
type Uniform struct {
	min, max uint64
	mu       struct {
		sync.Mutex
		rng *rand.Rand
	}
}

// NewUniform constructs a Uniform generator. A nil rng uses a fresh seed.
func NewUniform(rng *rand.Rand, min, max uint64) *Uniform {
	g := &Uniform{min: min, max: max}
	g.mu.rng = ensureRand(rng)
	return g
}

// Uint64 draws a value from [min, max].
func (g *Uniform) Uint64() uint64 {
	g.mu.Lock()
	result := g.mu.rng.Uint64n(g.max-g.min+1) + g.min
	g.mu.Unlock()
	return result
}

// Zipf draws from a Zipf distribution over [min, max], following the
// generator of "Quickly Generating Billion-Record Synthetic Databases"
// (Gray et al., SIGMOD 1994). Unlike rand.Zipf it supports any
// non-negative theta except 1.
type Zipf struct {
	theta        float64
	min          uint64
	alpha, zeta2 float64
	eta, zetaN   float64
	spread       float64
	mu           struct {
		sync.Mutex
		rng *rand.Rand
	}
}

// NewZipf constructs a Zipf generator over [min, max] with skew theta
// (a common benchmark choice is 0.99). A nil rng uses a fresh seed.
func NewZipf(rng *rand.Rand, min, max uint64, theta float64) (*Zipf, error) {
	if min > max {
		return nil, errors.Errorf("min %d > max %d", min, max)
	}
	if theta < 0.0 || theta == 1.0 {
		return nil, errors.Errorf("theta must be >= 0 and != 1: %v", theta)
	}

	z := &Zipf{theta: theta, min: min}
	z.mu.rng = ensureRand(rng)
	z.zeta2 = zeta(2, theta)
	z.zetaN = zeta(max+1-min, theta)
	z.alpha = 1.0 / (1.0 - theta)
	z.spread = float64(max + 1 - min)
	z.eta = (1 - math.Pow(2.0/z.spread, 1.0-theta)) / (1.0 - z.zeta2/z.zetaN)
	return z, nil
}

// zeta computes zeta(n, theta) = sum_{i=1..n} (1/i)^theta.
func zeta(n uint64, theta float64) float64 {
	var sum float64
	for i := uint64(1); i <= n; i++ {
		sum += 1.0 / math.Pow(float64(i), theta)
	}
	return sum
}

// Uint64 draws a value from [min, max] with Zipf-distributed probability.
func (z *Zipf) Uint64() uint64 {
	z.mu.Lock()
	u := z.mu.rng.Float64()
	z.mu.Unlock()

	uz := u * z.zetaN
	switch {
	case uz < 1.0:
		return z.min
	case uz < 1.0+math.Pow(0.5, z.theta):
		return z.min + 1
	default:
		return z.min + uint64(int64(z.spread*math.Pow(z.eta*u-z.eta+1.0, z.alpha)))
	}
}
