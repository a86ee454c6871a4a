// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !invariants && !race

package invariants

// Enabled is true if we were built with the "invariants" or "race" build
// tags.
const Enabled = false

// Value is a generic container for a value that should only exist in
// invariant builds. In non-invariant builds, storing a value is a no-op,
// retrieving a value returns the type parameter's zero value, and the Value
// struct takes up no space.
//
// Note that in non-invariant builds, the struct is zero-sized but it can
// still increase the size of a parent struct if it is the last field
// (because Go must allow getting a valid pointer address of the field).
type Value[V any] struct{}

// Get returns the current value, or the zero value if invariants are
// disabled.
func (*Value[V]) Get() V {
	var v V
	return v
}

// Store stores the value; no-op in non-invariant builds.
func (*Value[V]) Store(v V) {}
