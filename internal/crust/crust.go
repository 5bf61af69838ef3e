package crust

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Crust is a bundle of parallel per-cell rasters, one per Pool, backed by a
// single buffer so that whole groups of pools can be processed in one pass.
type Crust struct {
	n   int
	buf []float64

	Sediment       []float64
	Sedimentary    []float64
	Metamorphic    []float64
	FelsicPlutonic []float64
	FelsicVolcanic []float64
	MaficVolcanic  []float64
	MaficPlutonic  []float64
	Age            []float64
}

// New allocates a zeroed crust of n cells.
func New(n int) *Crust {
	c := &Crust{n: n, buf: make([]float64, NumPools*n)}
	c.Sediment = c.Pool(Sediment)
	c.Sedimentary = c.Pool(Sedimentary)
	c.Metamorphic = c.Pool(Metamorphic)
	c.FelsicPlutonic = c.Pool(FelsicPlutonic)
	c.FelsicVolcanic = c.Pool(FelsicVolcanic)
	c.MaficVolcanic = c.Pool(MaficVolcanic)
	c.MaficPlutonic = c.Pool(MaficPlutonic)
	c.Age = c.Pool(Age)
	return c
}

// Len returns the number of cells.
func (c *Crust) Len() int {
	return c.n
}

// Pool returns the raster for p. It shares storage with c.
func (c *Crust) Pool(p Pool) []float64 {
	return c.buf[int(p)*c.n : (int(p)+1)*c.n : (int(p)+1)*c.n]
}

// Everything returns every pool, age included, as one slice.
func (c *Crust) Everything() []float64 {
	return c.buf
}

// Mass returns every mass pool as one slice.
func (c *Crust) Mass() []float64 {
	return c.buf[:numMass*c.n]
}

// Conserved returns the conserved pools as one slice.
func (c *Crust) Conserved() []float64 {
	return c.buf[:numConserved*c.n]
}

// Reset zeroes every pool.
func (c *Crust) Reset() {
	clear(c.buf)
}

// Clone returns a deep copy of c.
func (c *Crust) Clone() *Crust {
	out := New(c.n)
	copy(out.buf, c.buf)
	return out
}

// Copy copies src into dst. They must have the same length.
func Copy(src, dst *Crust) {
	mustMatch(src, dst)
	copy(dst.buf, src.buf)
}

// AddDelta sets out = c + delta over every pool. out may alias either input.
func AddDelta(c, delta, out *Crust) *Crust {
	mustMatch(c, delta)
	if out == nil {
		out = New(c.n)
	}
	mustMatch(c, out)
	floats.AddTo(out.buf, c.buf, delta.buf)
	return out
}

// Overlap merges crust2 onto crust1 and writes the result to out (which may
// alias crust1). Conserved pools are summed wherever crust2 exists. The
// remaining pools describe the visible surface, so they are replaced wherever
// crust2 is on top.
func Overlap(crust1, crust2 *Crust, crust2Exists, crust2OnTop []bool, out *Crust) *Crust {
	mustMatch(crust1, crust2)
	if out == nil {
		out = New(crust1.n)
	}
	n := crust1.n
	for p := 0; p < NumPools; p++ {
		a := crust1.buf[p*n : (p+1)*n]
		b := crust2.buf[p*n : (p+1)*n]
		o := out.buf[p*n : (p+1)*n]
		if p < numConserved {
			for i := range o {
				if crust2Exists[i] {
					o[i] = a[i] + b[i]
				} else {
					o[i] = a[i]
				}
			}
			continue
		}
		for i := range o {
			if crust2OnTop[i] {
				o[i] = b[i]
			} else {
				o[i] = a[i]
			}
		}
	}
	return out
}

// GetValue returns the column at cell i.
func (c *Crust) GetValue(i int) RockColumn {
	var v [NumPools]float64
	for p := range v {
		v[p] = c.buf[p*c.n+i]
	}
	return ColumnFromValues(v)
}

// SetValue writes col into cell i.
func (c *Crust) SetValue(i int, col RockColumn) {
	v := col.Values()
	for p := range v {
		c.buf[p*c.n+i] = v[p]
	}
}

// Fill writes col into every cell.
func (c *Crust) Fill(col RockColumn) {
	v := col.Values()
	for p := range v {
		pool := c.buf[p*c.n : (p+1)*c.n]
		for i := range pool {
			pool[i] = v[p]
		}
	}
}

// FillIntoSelection writes col into every selected cell.
func (c *Crust) FillIntoSelection(col RockColumn, selection []bool) {
	v := col.Values()
	for p := range v {
		pool := c.buf[p*c.n : (p+1)*c.n]
		for i, in := range selection {
			if in {
				pool[i] = v[p]
			}
		}
	}
}

// ClearSelection zeroes every pool in the selected cells.
func (c *Crust) ClearSelection(selection []bool) {
	c.FillIntoSelection(RockColumn{}, selection)
}

// CopyIntoSelection copies src into c wherever selection is set.
func (c *Crust) CopyIntoSelection(src *Crust, selection []bool) {
	mustMatch(c, src)
	for p := 0; p < NumPools; p++ {
		dst := c.buf[p*c.n : (p+1)*c.n]
		s := src.buf[p*c.n : (p+1)*c.n]
		for i, in := range selection {
			if in {
				dst[i] = s[i]
			}
		}
	}
}

// GetIDs resamples c: out[i] = c[ids[i]] for every pool. out must not alias c.
func (c *Crust) GetIDs(ids []int, out *Crust) *Crust {
	if out == nil {
		out = New(len(ids))
	}
	for p := 0; p < NumPools; p++ {
		src := c.buf[p*c.n : (p+1)*c.n]
		dst := out.buf[p*out.n : (p+1)*out.n]
		for i, id := range ids {
			dst[i] = src[id]
		}
	}
	return out
}

// AddValuesToIDs scatters the mass pools of c into out: out[ids[i]] += c[i].
// Several cells may share a destination; their contributions are summed.
// Age is not scattered.
func (c *Crust) AddValuesToIDs(ids []int, out *Crust) {
	for p := 0; p < numMass; p++ {
		src := c.buf[p*c.n : (p+1)*c.n]
		dst := out.buf[p*out.n : (p+1)*out.n]
		for i, id := range ids {
			dst[id] += src[i]
		}
	}
}

// MultField multiplies every pool by field.
func (c *Crust) MultField(field []float64) {
	for p := 0; p < NumPools; p++ {
		floats.Mul(c.buf[p*c.n:(p+1)*c.n], field)
	}
}

// ZeroOutside zeroes every pool in cells where mask is false.
func (c *Crust) ZeroOutside(mask []bool) {
	for p := 0; p < NumPools; p++ {
		pool := c.buf[p*c.n : (p+1)*c.n]
		for i, in := range mask {
			if !in {
				pool[i] = 0
			}
		}
	}
}

// ClampNonNegative raises every negative value to zero and returns the total
// mass that was added doing so.
func (c *Crust) ClampNonNegative() float64 {
	clamped := 0.0
	for i, v := range c.buf {
		if v < 0 {
			if i < numMass*c.n {
				clamped -= v
			}
			c.buf[i] = 0
		}
	}
	return clamped
}

// ConservedTotal sums every conserved pool over every cell.
func (c *Crust) ConservedTotal() float64 {
	return floats.Sum(c.Conserved())
}

// ConservedMass writes the per-cell conserved mass into out.
func (c *Crust) ConservedMass(out []float64) []float64 {
	if out == nil {
		out = make([]float64, c.n)
	}
	copy(out, c.Sediment)
	for _, p := range ConservedPools[1:] {
		floats.Add(out, c.Pool(p))
	}
	return out
}

// PoolTotal sums one pool over every cell.
func (c *Crust) PoolTotal(p Pool) float64 {
	return floats.Sum(c.Pool(p))
}

func mustMatch(a, b *Crust) {
	if a.n != b.n {
		panic(fmt.Sprintf("crust: length mismatch %d != %d", a.n, b.n))
	}
}
