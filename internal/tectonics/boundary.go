package tectonics

import "github.com/talgya/lithosphere/internal/crust"

// Collision records one border cell that ran into another plate's interior.
type Collision struct {
	Plate     *Plate
	Cell      int
	Other     *Plate
	OtherCell int
	Dock      *DockResult // nil when the columns were merged
}

// DockResult describes where a docked column landed.
type DockResult struct {
	HostCell int
	Steps    int  // backward steps taken before a cell was found
	Found    bool // false when the search gave up and used the last cell
}

// UpdateBorders classifies cells along faces that straddle the plate edge.
// Member cells on such a face become collideable; empty ones riftable.
func (p *Plate) UpdateBorders() {
	clear(p.Collideable)
	clear(p.Riftable)
	for _, f := range p.grid.Faces {
		a, b, c := p.Mask[f[0]], p.Mask[f[1]], p.Mask[f[2]]
		if a == b && b == c {
			continue
		}
		for _, v := range f {
			if p.Mask[v] {
				p.Collideable[v] = true
			} else {
				p.Riftable[v] = true
			}
		}
	}
}

// Rift fills every riftable cell that no neighbor has filled or is itself
// about to rift, and returns how many cells were filled.
func (p *Plate) Rift(neighbors []*Plate, ocean Ocean) int {
	col := ocean.RiftingColumn()
	rifted := 0
	for j, riftable := range p.Riftable {
		if !riftable {
			continue
		}
		w := p.ToWorld(j)
		claimed := false
		for _, nb := range neighbors {
			if nb == p {
				continue
			}
			k := nb.LocalCellAt(w)
			if nb.Mask[k] || nb.Riftable[k] {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		p.Crust.SetValue(j, col)
		p.Mask[j] = true
		rifted++
	}
	return rifted
}

// syncNeighbors keeps the current neighbor order for plates still present
// and appends new ones.
func (p *Plate) syncNeighbors(plates []*Plate) {
	present := make(map[*Plate]bool, len(plates))
	for _, o := range plates {
		if o != p {
			present[o] = true
		}
	}
	kept := p.neighbors[:0]
	for _, o := range p.neighbors {
		if present[o] {
			kept = append(kept, o)
			delete(present, o)
		}
	}
	for _, o := range plates {
		if present[o] {
			kept = append(kept, o)
		}
	}
	p.neighbors = kept
}

// touch moves nb to the front of the neighbor order.
func (p *Plate) touch(idx int) {
	nb := p.neighbors[idx]
	copy(p.neighbors[1:idx+1], p.neighbors[:idx])
	p.neighbors[0] = nb
}

// Deform resolves collisions of this plate's collideable cells with the
// interiors of other plates. Continental pairs dock the smaller plate's cell
// into the larger plate; any other pair merges the column into the
// neighbor's cell. Neighbors are tried most recently collided first.
func (p *Plate) Deform(plates []*Plate, maxDockSteps int) []Collision {
	p.syncNeighbors(plates)
	var out []Collision
	for j, border := range p.Collideable {
		if !border || !p.Mask[j] {
			continue
		}
		w := p.ToWorld(j)
		for idx, nb := range p.neighbors {
			k := nb.LocalCellAt(w)
			if !nb.Mask[k] || nb.Collideable[k] {
				continue
			}
			p.touch(idx)
			out = append(out, p.collide(j, nb, k, maxDockSteps))
			break
		}
	}
	return out
}

func (p *Plate) collide(j int, nb *Plate, k int, maxDockSteps int) Collision {
	c := Collision{Plate: p, Cell: j, Other: nb, OtherCell: k}
	a, b := p.Crust.GetValue(j), nb.Crust.GetValue(k)
	if a.IsContinental() && b.IsContinental() {
		var r DockResult
		if p.CellCount() >= nb.CellCount() {
			r = p.Dock(nb, k, maxDockSteps)
		} else {
			r = nb.Dock(p, j, maxDockSteps)
		}
		c.Dock = &r
		return c
	}
	nb.Crust.SetValue(k, b.Add(a))
	p.Crust.SetValue(j, crust.RockColumn{})
	p.Mask[j] = false
	return c
}

// Dock moves sub's column at subCell into p. Starting at the column's
// current position it steps back through the plates' relative motion until
// it finds a filled oceanic cell of p, whose column it replaces. After
// maxSteps it gives up and stacks the column onto the last cell reached.
func (p *Plate) Dock(sub *Plate, subCell int, maxSteps int) DockResult {
	back := p.step(p.Increment).Mul3(sub.step(-sub.Increment))
	w := sub.ToWorld(subCell)
	r := DockResult{HostCell: p.LocalCellAt(w)}
	for r.Steps = 0; r.Steps < maxSteps; r.Steps++ {
		r.HostCell = p.LocalCellAt(w)
		if p.Mask[r.HostCell] && !p.Crust.GetValue(r.HostCell).IsContinental() {
			r.Found = true
			break
		}
		w = back.Mul3x1(w)
	}
	col := sub.Crust.GetValue(subCell)
	if !r.Found {
		col = p.Crust.GetValue(r.HostCell).Add(col)
	}
	p.Crust.SetValue(r.HostCell, col)
	p.Mask[r.HostCell] = true
	sub.Crust.SetValue(subCell, crust.RockColumn{})
	sub.Mask[subCell] = false
	return r
}

// ErodeParams is what Plate.Erode needs from the lithosphere.
type ErodeParams struct {
	Density  crust.MaterialDensity
	Gravity  float64
	Sealevel float64
	Params   crust.ReactionParams
}

// Erode transports rock downhill within the plate, using the plate's own
// surface height, and returns the mass added by clamping. Submerged cells
// all sit at height zero, so two of them never exchange rock.
func (p *Plate) Erode(dt float64, e ErodeParams) float64 {
	p.UpdateFields(e.Density, e.Gravity)
	height := crust.IsostaticDisplacement(p.Thickness, p.Density, e.Density, nil)
	crust.SurfaceHeight(height, e.Sealevel, height)
	env := crust.Environment{
		Grid:          p.grid,
		SurfaceHeight: height,
		Density:       e.Density,
		Gravity:       e.Gravity,
		Params:        e.Params,
		Mask:          p.Mask,
	}
	delta := crust.Erosion(env, p.Crust, dt, nil)
	crust.AddDelta(p.Crust, delta, p.Crust)
	return p.Crust.ClampNonNegative()
}
