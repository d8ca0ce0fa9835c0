// Package vfdapi exposes a read-only admin/introspection HTTP surface
// over the engine's own open files and scheduler state. This is new
// surface belonging to the engine itself, not the host library's
// object API, so it does not fall under the "high-level object APIs"
// Non-goal.
package vfdapi

import (
	"sync"
	"time"

	"vfdswmr/mdfile"
	"vfdswmr/scheduler"
)

// tickReporter is satisfied by both tick.WriterController and
// tick.ReaderController without vfdapi importing package tick, so the
// two packages stay independent and only cmd/ wires them together.
type tickReporter interface {
	TickNum() uint64
}

// FileRegistration describes one open metadata file for admin reporting.
type FileRegistration struct {
	Path       string
	Role       string // "writer" or "reader"
	Controller scheduler.Controller
	Handle     *mdfile.Handle
}

// Registry tracks every metadata file currently open in this process.
type Registry struct {
	mu    sync.RWMutex
	files map[string]FileRegistration
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]FileRegistration)}
}

// Register records an open file under its metadata file path.
func (r *Registry) Register(reg FileRegistration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[reg.Path] = reg
}

// Unregister drops a file from the registry, typically called at close.
func (r *Registry) Unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, path)
}

// Lookup returns the registration for path, if present.
func (r *Registry) Lookup(path string) (FileRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.files[path]
	return reg, ok
}

// StatusEntry is one row of the /status response.
type StatusEntry struct {
	Path      string    `json:"path"`
	Role      string    `json:"role"`
	TickNum   uint64    `json:"tick_num"`
	EndOfTick time.Time `json:"end_of_tick"`
}

// Status returns a snapshot of every open file's role, tick, and
// next end-of-tick deadline.
func (r *Registry) Status() []StatusEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StatusEntry, 0, len(r.files))
	for _, reg := range r.files {
		var tickNum uint64
		if tr, ok := reg.Controller.(tickReporter); ok {
			tickNum = tr.TickNum()
		}
		out = append(out, StatusEntry{
			Path:      reg.Path,
			Role:      reg.Role,
			TickNum:   tickNum,
			EndOfTick: reg.Controller.NextDeadline(),
		})
	}
	return out
}
