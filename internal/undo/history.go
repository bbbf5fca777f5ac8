/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import "sync"

// Config controls the depth cap of the history.
type Config struct {
	// MaxDepth limits the number of past snapshots kept (0 means unlimited).
	// The oldest entries are dropped first.
	MaxDepth int
}

// History wraps a store value with linear undo/redo over committed snapshots.
//
// Updates are tagged: a commit becomes a new history entry, a preview only
// replaces the present. Previews are never recorded, so undo always lands on
// the last committed snapshot, never on an intermediate drag or rubber-band
// frame. It is safe for concurrent use.
type History[S any] struct {
	cfg Config
	mu  sync.Mutex

	past   []S
	future []S
	// committed is the present as of the last commit, undo or redo.
	committed S
	present   S

	onCommit []func(S)
}

// New creates a history whose present (and committed base) is initial.
func New[S any](initial S, cfg Config) *History[S] {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	return &History[S]{cfg: cfg, committed: initial, present: initial}
}

// Apply installs next as the present. With commit the last committed snapshot
// is pushed onto past and the redo stack is cleared.
func (h *History[S]) Apply(next S, commit bool) {
	h.mu.Lock()
	if !commit {
		h.present = next
		h.mu.Unlock()
		return
	}
	h.past = append(h.past, h.committed)
	h.future = nil
	h.committed = next
	h.present = next
	h.enforceCapLocked()
	hooks := append([]func(S){}, h.onCommit...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(next)
	}
}

// Undo steps back to the previous committed snapshot. Pending previews are
// discarded. Returns false when there is nothing to undo.
func (h *History[S]) Undo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.past)
	if n == 0 {
		return false
	}
	prev := h.past[n-1]
	h.past = h.past[:n-1]
	h.future = append(h.future, h.committed)
	h.committed = prev
	h.present = prev
	return true
}

// Redo re-applies the most recently undone snapshot.
func (h *History[S]) Redo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.future)
	if n == 0 {
		return false
	}
	next := h.future[n-1]
	h.future = h.future[:n-1]
	h.past = append(h.past, h.committed)
	h.committed = next
	h.present = next
	h.enforceCapLocked()
	return true
}

// Discard drops pending previews and restores the committed present.
func (h *History[S]) Discard() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.present = h.committed
}

func (h *History[S]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past) > 0
}

func (h *History[S]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future) > 0
}

// Present returns the current value, previews included.
func (h *History[S]) Present() S {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.present
}

// Committed returns the present as of the last recorded entry.
func (h *History[S]) Committed() S {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.committed
}

// Stats returns current stack sizes for diagnostics.
func (h *History[S]) Stats() (past, future int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past), len(h.future)
}

// Reset clears both stacks and installs initial as the present.
func (h *History[S]) Reset(initial S) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.past = nil
	h.future = nil
	h.committed = initial
	h.present = initial
}

// OnCommit registers fn to run after every committed Apply, outside the lock.
func (h *History[S]) OnCommit(fn func(S)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCommit = append(h.onCommit, fn)
}

func (h *History[S]) enforceCapLocked() {
	if h.cfg.MaxDepth <= 0 || len(h.past) <= h.cfg.MaxDepth {
		return
	}
	// drop the oldest extras
	toDrop := len(h.past) - h.cfg.MaxDepth
	h.past = append([]S{}, h.past[toDrop:]...)
}
