// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants provides assertion facilities that are compiled away
// outside of "invariants" (or "race") builds.
package invariants

import "runtime"

// SetFinalizer is a wrapper around runtime.SetFinalizer that is a no-op
// unless we were built with the "invariants" build tag. It is excluded from
// race builds because of historical race detector bugs around finalizers.
func SetFinalizer(obj, finalizer interface{}) {
	if Enabled && !RaceEnabled {
		runtime.SetFinalizer(obj, finalizer)
	}
}
