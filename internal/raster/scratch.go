package raster

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Scratchpad pools grid-sized working buffers so a timestep does not
// allocate a fresh raster for every intermediate value. Buffers are borrowed
// inside a named frame and returned together when the frame is released.
// Frames nest: Release must name the innermost open frame.
//
// A Scratchpad is not safe for concurrent use.
type Scratchpad struct {
	n int

	freeFloats  [][]float64
	freeMasks   [][]bool
	freeInts    [][]int
	freeVectors [][]mgl64.Vec3

	frames []scratchFrame

	allocations int
}

type scratchFrame struct {
	name    string
	floats  [][]float64
	masks   [][]bool
	ints    [][]int
	vectors [][]mgl64.Vec3
}

// NewScratchpad returns a pool of buffers of length n.
func NewScratchpad(n int) *Scratchpad {
	return &Scratchpad{n: n}
}

// Allocate opens a frame.
func (s *Scratchpad) Allocate(name string) {
	s.frames = append(s.frames, scratchFrame{name: name})
}

// Release closes the innermost frame and returns its buffers to the pool.
// It panics if name does not match that frame.
func (s *Scratchpad) Release(name string) {
	if len(s.frames) == 0 {
		panic(fmt.Sprintf("scratchpad: release %q with no open frame", name))
	}
	f := s.frames[len(s.frames)-1]
	if f.name != name {
		panic(fmt.Sprintf("scratchpad: release %q but innermost frame is %q", name, f.name))
	}
	s.frames = s.frames[:len(s.frames)-1]
	s.freeFloats = append(s.freeFloats, f.floats...)
	s.freeMasks = append(s.freeMasks, f.masks...)
	s.freeInts = append(s.freeInts, f.ints...)
	s.freeVectors = append(s.freeVectors, f.vectors...)
}

// Depth returns the number of open frames.
func (s *Scratchpad) Depth() int {
	return len(s.frames)
}

// Allocations returns how many buffers the pool has created.
func (s *Scratchpad) Allocations() int {
	return s.allocations
}

func (s *Scratchpad) top() *scratchFrame {
	if len(s.frames) == 0 {
		panic("scratchpad: borrow with no open frame")
	}
	return &s.frames[len(s.frames)-1]
}

// Float borrows a zeroed float buffer.
func (s *Scratchpad) Float() []float64 {
	f := s.top()
	var b []float64
	if k := len(s.freeFloats); k > 0 {
		b = s.freeFloats[k-1]
		s.freeFloats = s.freeFloats[:k-1]
		clear(b)
	} else {
		b = make([]float64, s.n)
		s.allocations++
	}
	f.floats = append(f.floats, b)
	return b
}

// Mask borrows a cleared mask.
func (s *Scratchpad) Mask() []bool {
	f := s.top()
	var b []bool
	if k := len(s.freeMasks); k > 0 {
		b = s.freeMasks[k-1]
		s.freeMasks = s.freeMasks[:k-1]
		clear(b)
	} else {
		b = make([]bool, s.n)
		s.allocations++
	}
	f.masks = append(f.masks, b)
	return b
}

// Int borrows a zeroed int buffer.
func (s *Scratchpad) Int() []int {
	f := s.top()
	var b []int
	if k := len(s.freeInts); k > 0 {
		b = s.freeInts[k-1]
		s.freeInts = s.freeInts[:k-1]
		clear(b)
	} else {
		b = make([]int, s.n)
		s.allocations++
	}
	f.ints = append(f.ints, b)
	return b
}

// Vector borrows a zeroed vector buffer.
func (s *Scratchpad) Vector() []mgl64.Vec3 {
	f := s.top()
	var b []mgl64.Vec3
	if k := len(s.freeVectors); k > 0 {
		b = s.freeVectors[k-1]
		s.freeVectors = s.freeVectors[:k-1]
		clear(b)
	} else {
		b = make([]mgl64.Vec3, s.n)
		s.allocations++
	}
	f.vectors = append(f.vectors, b)
	return b
}
