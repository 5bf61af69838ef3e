package tectonics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/grid"
)

// Plate is a rigid cap of lithosphere. It stores its crust on the full grid
// in its own local frame; Pose rotates local positions into world positions.
// A cell belongs to the plate where Mask is set.
type Plate struct {
	ID uuid.UUID

	grid  *grid.Grid
	Crust *crust.Crust
	Mask  []bool

	EulerPole    mgl64.Vec3 // unit rotation axis
	AngularSpeed float64    // rad/s
	Pose         mgl64.Mat3 // local → world
	Increment    float64    // angle of the last Move, radians

	// LocalIDsOfGlobalCells[i] is the local cell under world cell i.
	LocalIDsOfGlobalCells []int
	// GlobalIDsOfLocalCells[j] is the world cell under local cell j.
	GlobalIDsOfLocalCells []int

	Thickness []float64
	TotalMass []float64
	Density   []float64
	Buoyancy  []float64

	Collideable []bool
	Riftable    []bool

	// neighbors in most-recently-collided order.
	neighbors []*Plate
}

// NewPlate returns a plate on g that takes ownership of c. mask is copied.
func NewPlate(g *grid.Grid, mask []bool, c *crust.Crust, pole mgl64.Vec3, speed float64) *Plate {
	n := g.Len()
	p := &Plate{
		ID:                    uuid.New(),
		grid:                  g,
		Crust:                 c,
		Mask:                  append([]bool(nil), mask...),
		EulerPole:             normalizeOrZero(pole),
		AngularSpeed:          speed,
		Pose:                  mgl64.Ident3(),
		LocalIDsOfGlobalCells: make([]int, n),
		GlobalIDsOfLocalCells: make([]int, n),
		Thickness:             make([]float64, n),
		TotalMass:             make([]float64, n),
		Density:               make([]float64, n),
		Buoyancy:              make([]float64, n),
		Collideable:           make([]bool, n),
		Riftable:              make([]bool, n),
	}
	for i := range p.LocalIDsOfGlobalCells {
		p.LocalIDsOfGlobalCells[i] = i
		p.GlobalIDsOfLocalCells[i] = i
	}
	return p
}

func normalizeOrZero(v mgl64.Vec3) mgl64.Vec3 {
	if l := v.Len(); l > 0 {
		return v.Mul(1 / l)
	}
	return mgl64.Vec3{}
}

// CellCount returns the number of member cells.
func (p *Plate) CellCount() int {
	n := 0
	for _, in := range p.Mask {
		if in {
			n++
		}
	}
	return n
}

// step returns the rotation the plate performs over an angle.
func (p *Plate) step(angle float64) mgl64.Mat3 {
	if angle == 0 || p.EulerPole.Len() == 0 {
		return mgl64.Ident3()
	}
	return mgl64.HomogRotate3D(angle, p.EulerPole).Mat3()
}

// Move rotates the plate about its Euler pole by AngularSpeed·dt. The new
// rotation is applied after the existing pose.
func (p *Plate) Move(dt float64) {
	p.Increment = p.AngularSpeed * dt
	if p.Increment == 0 || p.EulerPole.Len() == 0 {
		return
	}
	p.Pose = p.step(p.Increment).Mul3(p.Pose)
	p.remap()
}

func (p *Plate) remap() {
	p.grid.NearestIDs(p.Pose.Transpose(), p.LocalIDsOfGlobalCells)
	p.grid.NearestIDs(p.Pose, p.GlobalIDsOfLocalCells)
}

// ToWorld returns the world position of local cell j.
func (p *Plate) ToWorld(j int) mgl64.Vec3 {
	return p.Pose.Mul3x1(p.grid.Pos[j])
}

// LocalCellAt returns the local cell under world position w.
func (p *Plate) LocalCellAt(w mgl64.Vec3) int {
	return p.grid.NearestID(p.Pose.Transpose().Mul3x1(w))
}

// UpdateFields recomputes the per-cell derived rasters from Crust.
func (p *Plate) UpdateFields(d crust.MaterialDensity, gravity float64) {
	p.Crust.Thickness(d, p.Thickness)
	p.Crust.TotalMass(p.TotalMass)
	crust.Density(p.TotalMass, p.Thickness, d.MaficVolcanicMin, p.Density)
	crust.Buoyancy(p.Density, d, gravity, p.Buoyancy)
}

// Globalize writes the plate crust resampled into world cells into out.
func (p *Plate) Globalize(out *crust.Crust) *crust.Crust {
	return p.Crust.GetIDs(p.LocalIDsOfGlobalCells, out)
}
