package tectonics

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/lithosphere/internal/grid"
)

// Split divides the plate into n plates around randomly chosen member
// cells. Each member cell goes to the nearest seed. The new plates keep
// this plate's pose and get random Euler poles turning at speed. Split
// returns nil when there are fewer than n member cells or n < 2.
func (p *Plate) Split(n int, speed float64, rng *rand.Rand) []*Plate {
	if n < 2 {
		return nil
	}
	var members []int
	for j, in := range p.Mask {
		if in {
			members = append(members, j)
		}
	}
	if len(members) < n {
		return nil
	}
	rng.Shuffle(len(members), func(a, b int) {
		members[a], members[b] = members[b], members[a]
	})
	seeds := make([]mgl64.Vec3, n)
	for k := range seeds {
		seeds[k] = p.grid.Pos[members[k]]
	}

	size := p.grid.Len()
	masks := make([][]bool, n)
	for k := range masks {
		masks[k] = make([]bool, size)
	}
	nearest := grid.NewIndex(seeds)
	for _, j := range members {
		masks[nearest.Nearest(p.grid.Pos[j])][j] = true
	}

	out := make([]*Plate, n)
	for k, mask := range masks {
		c := p.Crust.Clone()
		c.ZeroOutside(mask)
		q := NewPlate(p.grid, mask, c, randomAxis(rng), speed)
		q.Pose = p.Pose
		copy(q.LocalIDsOfGlobalCells, p.LocalIDsOfGlobalCells)
		copy(q.GlobalIDsOfLocalCells, p.GlobalIDsOfLocalCells)
		copy(q.Thickness, p.Thickness)
		copy(q.TotalMass, p.TotalMass)
		copy(q.Density, p.Density)
		copy(q.Buoyancy, p.Buoyancy)
		out[k] = q
	}
	return out
}

func randomAxis(rng *rand.Rand) mgl64.Vec3 {
	for {
		v := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		if l := v.Len(); l > 1e-6 {
			return v.Mul(1 / l)
		}
	}
}
