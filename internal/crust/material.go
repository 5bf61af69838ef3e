package crust

// MaterialDensity holds densities in kg/m³. Mafic rock densifies with age,
// so it carries a minimum (fresh) and maximum (old) value.
type MaterialDensity struct {
	Sediment         float64 `yaml:"sediment"`
	Sedimentary      float64 `yaml:"sedimentary"`
	Metamorphic      float64 `yaml:"metamorphic"`
	FelsicPlutonic   float64 `yaml:"felsic_plutonic"`
	FelsicVolcanic   float64 `yaml:"felsic_volcanic"`
	MaficVolcanicMin float64 `yaml:"mafic_volcanic_min"`
	MaficVolcanicMax float64 `yaml:"mafic_volcanic_max"`
	MaficPlutonicMin float64 `yaml:"mafic_plutonic_min"`
	MaficPlutonicMax float64 `yaml:"mafic_plutonic_max"`
	Mantle           float64 `yaml:"mantle"`
	Ocean            float64 `yaml:"ocean"`
}

// DefaultMaterialDensity returns Earth-like densities.
func DefaultMaterialDensity() MaterialDensity {
	return MaterialDensity{
		Sediment:         1500,
		Sedimentary:      2600,
		Metamorphic:      2800,
		FelsicPlutonic:   2600,
		FelsicVolcanic:   2600,
		MaficVolcanicMin: 2890,
		MaficVolcanicMax: 3300,
		MaficPlutonicMin: 2890,
		MaficPlutonicMax: 3300,
		Mantle:           3075,
		Ocean:            1026,
	}
}

// MaterialViscosity holds viscosities in Pa·s.
type MaterialViscosity struct {
	Mantle float64 `yaml:"mantle"`
}

// DefaultMaterialViscosity returns the Earth mantle viscosity.
func DefaultMaterialViscosity() MaterialViscosity {
	return MaterialViscosity{Mantle: 1.57e17}
}

// OceanicColumn is fresh oceanic crust: 7.1 km of mafic volcanic rock.
func OceanicColumn(d MaterialDensity) RockColumn {
	return RockColumn{MaficVolcanic: d.MaficVolcanicMin * 7100}
}

// ContinentalColumn is a mature continental column: 36.9 km of felsic rock,
// 85% plutonic and 15% volcanic, under 5 m of sediment.
func ContinentalColumn() RockColumn {
	const felsic = 2700 * 36900
	return RockColumn{
		FelsicPlutonic: felsic * 0.85,
		FelsicVolcanic: felsic * 0.15,
		Sediment:       2500 * 5,
	}
}
