// Package raster provides the array algebra the simulation is written in:
// stencil operators over a grid, binary morphology on masks, flood-fill
// segmentation of vector fields, and a scratch-buffer pool.
//
// Every function takes an optional output slice. A nil output is allocated.
// Pointwise functions allow the output to alias an input; stencil functions
// (anything that reads a neighbor) must not be given an aliased output.
package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"github.com/talgya/lithosphere/internal/grid"
)

func floatOut(out []float64, n int) []float64 {
	if out == nil {
		return make([]float64, n)
	}
	return out
}

func vectorOut(out []mgl64.Vec3, n int) []mgl64.Vec3 {
	if out == nil {
		return make([]mgl64.Vec3, n)
	}
	return out
}

// Fill sets every element of out to v.
func Fill(out []float64, v float64) []float64 {
	for i := range out {
		out[i] = v
	}
	return out
}

// Gradient estimates the tangent gradient of f at every vertex.
func Gradient(g *grid.Grid, f []float64, out []mgl64.Vec3) []mgl64.Vec3 {
	out = vectorOut(out, g.Len())
	for i := range out {
		var sum mgl64.Vec3
		start, end := g.ArrowsFrom(i)
		for a := start; a < end; a++ {
			arrow := g.Arrows[a]
			slope := (f[arrow.To] - f[arrow.From]) / g.ArrowDist[a]
			sum = sum.Add(g.ArrowDir[a].Mul(slope))
		}
		if n := g.NeighborCount[i]; n > 0 {
			sum = sum.Mul(1 / float64(n))
		}
		out[i] = sum
	}
	return out
}

// Divergence estimates the divergence of a tangent vector field.
func Divergence(g *grid.Grid, v []mgl64.Vec3, out []float64) []float64 {
	out = floatOut(out, g.Len())
	for i := range out {
		sum := 0.0
		start, end := g.ArrowsFrom(i)
		for a := start; a < end; a++ {
			arrow := g.Arrows[a]
			sum += v[arrow.To].Sub(v[arrow.From]).Dot(g.ArrowDir[a]) / g.ArrowDist[a]
		}
		if n := g.NeighborCount[i]; n > 0 {
			sum /= float64(n)
		}
		out[i] = sum
	}
	return out
}

// Laplacian returns the mean neighbor value minus the cell value.
func Laplacian(g *grid.Grid, f []float64, out []float64) []float64 {
	out = floatOut(out, g.Len())
	for i := range out {
		sum := 0.0
		for _, j := range g.Neighbors[i] {
			sum += f[j]
		}
		if n := g.NeighborCount[i]; n > 0 {
			out[i] = sum/float64(n) - f[i]
		} else {
			out[i] = 0
		}
	}
	return out
}

// DiffusionByConstant runs one explicit diffusion step, f + k·∇²f.
// scratch holds the laplacian and must not alias f or out.
func DiffusionByConstant(g *grid.Grid, f []float64, k float64, out, scratch []float64) []float64 {
	out = floatOut(out, g.Len())
	lap := Laplacian(g, f, scratch)
	return floats.AddScaledTo(out, f, k, lap)
}

// AverageDifference returns the mean absolute difference between each cell
// and its neighbors.
func AverageDifference(g *grid.Grid, f []float64, out []float64) []float64 {
	out = floatOut(out, g.Len())
	for i := range out {
		sum := 0.0
		for _, j := range g.Neighbors[i] {
			sum += math.Abs(f[i] - f[j])
		}
		if n := g.NeighborCount[i]; n > 0 {
			out[i] = sum / float64(n)
		} else {
			out[i] = 0
		}
	}
	return out
}

// Magnitude returns the length of every vector.
func Magnitude(v []mgl64.Vec3, out []float64) []float64 {
	out = floatOut(out, len(v))
	for i, x := range v {
		out[i] = x.Len()
	}
	return out
}

// CrossPositions returns v[i] × pos[i] for every vertex.
func CrossPositions(g *grid.Grid, v []mgl64.Vec3, out []mgl64.Vec3) []mgl64.Vec3 {
	out = vectorOut(out, g.Len())
	for i := range out {
		out[i] = v[i].Cross(g.Pos[i])
	}
	return out
}

// Similarity is the cosine of the angle between a and b, or 0 when either is
// the zero vector.
func Similarity(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	return a.Dot(b) / (la * lb)
}
