package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CelestialBodiesTable is the sample table name
const CelestialBodiesTable = "celestial_bodies"

// Body types used by the sample rows
const (
	BodyTypePlanet      = "Planet"
	BodyTypeMoon        = "Moon"
	BodyTypeDwarfPlanet = "Dwarf Planet"
)

// CelestialBody is one row of the celestial_bodies table
type CelestialBody struct {
	ID                int64           `gorm:"column:id;primaryKey" json:"id"`
	Name              string          `gorm:"column:name;type:varchar(100)" json:"name"`
	BodyType          string          `gorm:"column:body_type;type:varchar(50)" json:"bodyType"`
	MeanRadiusKm      decimal.Decimal `gorm:"column:mean_radius_km;type:numeric" json:"meanRadiusKm"`
	MassKg            decimal.Decimal `gorm:"column:mass_kg;type:numeric" json:"massKg"`
	DistanceFromSunKm decimal.Decimal `gorm:"column:distance_from_sun_km;type:numeric" json:"distanceFromSunKm"`
}

// TableName returns the table name for GORM
func (CelestialBody) TableName() string {
	return CelestialBodiesTable
}

// Values returns the insertable column values in table order, without the id
func (b CelestialBody) Values() []interface{} {
	return []interface{}{b.Name, b.BodyType, b.MeanRadiusKm, b.MassKg, b.DistanceFromSunKm}
}

// Tuple formats the row as a tuple, e.g. (1, 'Mercury', 'Planet', 2439.7, ...)
func (b CelestialBody) Tuple() string {
	return fmt.Sprintf("(%d, '%s', '%s', %s, %s, %s)",
		b.ID, b.Name, b.BodyType,
		b.MeanRadiusKm.String(), b.MassKg.String(), b.DistanceFromSunKm.String(),
	)
}

func body(name, bodyType, radius, mass, distance string) CelestialBody {
	return CelestialBody{
		Name:              name,
		BodyType:          bodyType,
		MeanRadiusKm:      decimal.RequireFromString(radius),
		MassKg:            decimal.RequireFromString(mass),
		DistanceFromSunKm: decimal.RequireFromString(distance),
	}
}

// SampleBodies returns the fixed sample rows in insertion order
func SampleBodies() []CelestialBody {
	return []CelestialBody{
		body("Mercury", BodyTypePlanet, "2439.7", "3.3011e23", "57909227"),
		body("Venus", BodyTypePlanet, "6051.8", "4.8675e24", "108209475"),
		body("Earth", BodyTypePlanet, "6371.0", "5.97237e24", "149598262"),
		body("Mars", BodyTypePlanet, "3389.5", "6.4171e23", "227943824"),
		body("Jupiter", BodyTypePlanet, "69911", "1.8982e27", "778340821"),
		body("Europa", BodyTypeMoon, "1560.8", "4.7998e22", "670900000"),
		body("Ganymede", BodyTypeMoon, "2634.1", "1.4819e23", "670900000"),
		body("Ceres", BodyTypeDwarfPlanet, "473", "9.3835e20", "413700000"),
		body("Pluto", BodyTypeDwarfPlanet, "1188.3", "1.303e22", "5906440628"),
	}
}
