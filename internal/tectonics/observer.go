package tectonics

import "github.com/talgya/lithosphere/internal/crust"

// Observer is notified when plates appear and disappear.
type Observer interface {
	PlateCreated(p *Plate)
	PlateDestroyed(p *Plate)
}

type nopObserver struct{}

func (nopObserver) PlateCreated(*Plate)   {}
func (nopObserver) PlateDestroyed(*Plate) {}

// Ocean supplies the composition of newly rifted crust.
type Ocean interface {
	RiftingColumn() crust.RockColumn
}

// FixedOcean always rifts the same column.
type FixedOcean crust.RockColumn

// RiftingColumn implements Ocean.
func (o FixedOcean) RiftingColumn() crust.RockColumn {
	return crust.RockColumn(o)
}
