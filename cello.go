// Package cello provides the storage core of a small embedded scripting
// runtime: a fixed-capacity reference-counted cell arena, a run-length
// snapshot codec, snapshot persistence to raw flash or a host file, a
// JSON-like serializer and a built-in method dispatcher.
//
// The arena holds every runtime value (scalars, chained strings, arrays,
// objects, functions) in uniform 24-byte cells addressed by small
// integer handles, so a whole heap snapshots to a flat byte image and
// restores byte-exact.
//
// # Basic Usage
//
// Building values and persisting the heap to a host file:
//
//	import "github.com/minivm/cello"
//
//	heap, _ := cello.NewArena(1024)
//
//	obj, _ := heap.NewObject()
//	greeting, _ := heap.NewString("hello from a saved heap")
//	heap.ObjectSet(obj, "greeting", greeting)
//
//	_ = cello.SaveFile(heap, "heap.img")
//
//	restored, _ := cello.NewArena(16) // LoadFile resizes to fit
//	_ = cello.LoadFile(restored, "heap.img")
//
// Persisting to a memory-mapped flash region instead:
//
//	dev, _ := flash.NewMem(64*1024, 4096)
//	mgr, _ := snapshot.NewManager(dev, snapshot.Layout{
//	    RegionStart:   16 * 1024,
//	    MagicLocation: 32*1024 - 4,
//	    Magic:         snapshot.DefaultMagic,
//	})
//	_, _ = mgr.Save(heap)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the arena
// and snapshot packages, covering the most common use cases. For flash
// layouts, compression choices and the dispatcher, use the arena,
// snapshot, stringify and builtin packages directly.
package cello

import (
	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/snapshot"
	"github.com/minivm/cello/stringify"
)

// NewArena creates a cell arena with the given capacity.
func NewArena(capacity int) (*arena.Arena, error) {
	return arena.New(capacity)
}

// SaveFile writes the arena's heap image to a host file in the canonical
// run-length-encoded snapshot format.
func SaveFile(a *arena.Arena, path string) error {
	return snapshot.SaveFile(a, path)
}

// LoadFile restores a heap image previously written by SaveFile, resizing
// the arena to the saved capacity. The arena is left unmodified on error.
func LoadFile(a *arena.Arena, path string) error {
	return snapshot.LoadFile(a, path)
}

// Stringify renders the cell subgraph rooted at h as JSON-like text.
func Stringify(a *arena.Arena, h arena.Handle) string {
	return stringify.Stringify(a, h)
}
