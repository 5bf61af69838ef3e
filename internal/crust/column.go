package crust

// RockColumn is the content of a single cell: one value per pool. Masses are
// kg/m², age is seconds since formation.
type RockColumn struct {
	Sediment       float64 `json:"sediment" yaml:"sediment"`
	Sedimentary    float64 `json:"sedimentary" yaml:"sedimentary"`
	Metamorphic    float64 `json:"metamorphic" yaml:"metamorphic"`
	FelsicPlutonic float64 `json:"felsic_plutonic" yaml:"felsic_plutonic"`
	FelsicVolcanic float64 `json:"felsic_volcanic" yaml:"felsic_volcanic"`
	MaficVolcanic  float64 `json:"mafic_volcanic" yaml:"mafic_volcanic"`
	MaficPlutonic  float64 `json:"mafic_plutonic" yaml:"mafic_plutonic"`
	Age            float64 `json:"age" yaml:"age"`
}

// Values returns the column in pool order.
func (r RockColumn) Values() [NumPools]float64 {
	return [NumPools]float64{
		r.Sediment, r.Sedimentary, r.Metamorphic, r.FelsicPlutonic,
		r.FelsicVolcanic, r.MaficVolcanic, r.MaficPlutonic, r.Age,
	}
}

// ColumnFromValues builds a column from values in pool order.
func ColumnFromValues(v [NumPools]float64) RockColumn {
	return RockColumn{
		Sediment:       v[Sediment],
		Sedimentary:    v[Sedimentary],
		Metamorphic:    v[Metamorphic],
		FelsicPlutonic: v[FelsicPlutonic],
		FelsicVolcanic: v[FelsicVolcanic],
		MaficVolcanic:  v[MaficVolcanic],
		MaficPlutonic:  v[MaficPlutonic],
		Age:            v[Age],
	}
}

// Get returns the value of one pool.
func (r RockColumn) Get(p Pool) float64 {
	return r.Values()[p]
}

// Conserved returns the felsic-lineage mass.
func (r RockColumn) Conserved() float64 {
	return r.Sediment + r.Sedimentary + r.Metamorphic + r.FelsicPlutonic + r.FelsicVolcanic
}

// Mafic returns the oceanic-type mass.
func (r RockColumn) Mafic() float64 {
	return r.MaficVolcanic + r.MaficPlutonic
}

// Mass returns the total mass.
func (r RockColumn) Mass() float64 {
	return r.Conserved() + r.Mafic()
}

// IsContinental reports whether felsic-lineage rock dominates the column.
func (r RockColumn) IsContinental() bool {
	return r.Conserved() > r.Mafic()
}

// Add stacks o beneath r: masses are summed and r keeps its age.
func (r RockColumn) Add(o RockColumn) RockColumn {
	a, b := r.Values(), o.Values()
	for p := 0; p < numMass; p++ {
		a[p] += b[p]
	}
	return ColumnFromValues(a)
}
