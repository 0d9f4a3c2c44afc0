/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package esdb

import (
	"sync"
	"weak"
)

// stopper is the small capability every subscription reader variant
// shares (§4.8, §9): catch-up and persistent, sync or async, all expose
// at least Stop.
type stopper interface {
	Stop()
}

// streamerRegistry is the per-Client structure tracking every
// subscription reader opened through that Client so Client.Close can stop
// them all; no registry is shared across Clients in a process. It
// holds weak references: a reader whose consumer dropped every strong
// reference is garbage-collectible without ever calling Stop, and the
// registry tolerates that — enumeration silently skips collected entries.
//
// Each entry stores a closure over a typed weak.Pointer[T] rather than a
// weak.Pointer[stopper], so the weak reference targets the very same
// allocation the caller's reader handle points to (weak.Make requires the
// concrete *T; boxing into the stopper interface first would create a
// second, registry-only allocation with its own, unrelated lifetime).
type streamerRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]func() bool
}

func newStreamerRegistry() *streamerRegistry {
	return &streamerRegistry{entries: make(map[uint64]func() bool)}
}

// registerStreamer adds ptr to the registry and returns a handle usable
// with unregister.
func registerStreamer[T stopper](r *streamerRegistry, ptr *T) uint64 {
	w := weak.Make(ptr)

	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.entries[id] = func() bool {
		v := w.Value()
		if v == nil {
			return false
		}
		(*v).Stop()
		return true
	}
	return id
}

func (r *streamerRegistry) unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// stopAll iterates a snapshot of the registry and calls Stop on every
// entry still alive, per §5 ("iteration returns a snapshot copy to avoid
// holding the mutex across stop calls").
func (r *streamerRegistry) stopAll() {
	r.mu.Lock()
	snapshot := make([]func() bool, 0, len(r.entries))
	for _, fn := range r.entries {
		snapshot = append(snapshot, fn)
	}
	r.mu.Unlock()

	for _, fn := range snapshot {
		fn()
	}
}
