package tectonics

import (
	"errors"
	"fmt"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/units"
)

// ErrMissingDependency is wrapped by every MissingDependencyError.
var ErrMissingDependency = errors.New("dependency not provided")

// ErrNotInitialized is returned when stepping a Lithosphere before Initialize.
var ErrNotInitialized = errors.New("lithosphere not initialized")

// MissingDependencyError names a dependency that was never supplied.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%q not provided", e.Name)
}

func (e *MissingDependencyError) Unwrap() error {
	return ErrMissingDependency
}

// Dependencies are values owned by other models (ocean, planet) that the
// lithosphere reads. Nil fields are left unchanged by SetDependencies.
type Dependencies struct {
	Sealevel          *float64
	SurfaceGravity    *float64
	MaterialDensity   *crust.MaterialDensity
	MaterialViscosity *crust.MaterialViscosity
}

// EarthDependencies returns a complete set of Earth values.
func EarthDependencies() Dependencies {
	sealevel := 3682.0
	gravity := units.EarthGravity
	density := crust.DefaultMaterialDensity()
	viscosity := crust.DefaultMaterialViscosity()
	return Dependencies{
		Sealevel:          &sealevel,
		SurfaceGravity:    &gravity,
		MaterialDensity:   &density,
		MaterialViscosity: &viscosity,
	}
}

func (d *Dependencies) merge(o Dependencies) {
	if o.Sealevel != nil {
		d.Sealevel = o.Sealevel
	}
	if o.SurfaceGravity != nil {
		d.SurfaceGravity = o.SurfaceGravity
	}
	if o.MaterialDensity != nil {
		d.MaterialDensity = o.MaterialDensity
	}
	if o.MaterialViscosity != nil {
		d.MaterialViscosity = o.MaterialViscosity
	}
}

func (d Dependencies) check() error {
	switch {
	case d.Sealevel == nil:
		return &MissingDependencyError{Name: "sealevel"}
	case d.MaterialDensity == nil:
		return &MissingDependencyError{Name: "material_density"}
	case d.MaterialViscosity == nil:
		return &MissingDependencyError{Name: "material_viscosity"}
	case d.SurfaceGravity == nil:
		return &MissingDependencyError{Name: "surface_gravity"}
	}
	return nil
}
