package repository

import (
	"context"
	"fmt"

	"github.com/fsdh/datahub-samples/internal/domain"
	"github.com/fsdh/datahub-samples/internal/frame"
	"gorm.io/gorm"
)

const createTableQuery = `
CREATE TABLE IF NOT EXISTS celestial_bodies (
    id SERIAL PRIMARY KEY,
    name VARCHAR(100),
    body_type VARCHAR(50),
    mean_radius_km NUMERIC,
    mass_kg NUMERIC,
    distance_from_sun_km NUMERIC
);
`

// sqlite has no SERIAL; INTEGER PRIMARY KEY AUTOINCREMENT gives the same ids
const createTableQuerySQLite = `
CREATE TABLE IF NOT EXISTS celestial_bodies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name VARCHAR(100),
    body_type VARCHAR(50),
    mean_radius_km NUMERIC,
    mass_kg NUMERIC,
    distance_from_sun_km NUMERIC
);
`

const insertQuery = `
INSERT INTO celestial_bodies (name, body_type, mean_radius_km, mass_kg, distance_from_sun_km) VALUES (?, ?, ?, ?, ?);
`

const selectQuery = "SELECT * FROM celestial_bodies;"

// CelestialBodyRepository handles celestial body data access operations
type CelestialBodyRepository struct {
	db *gorm.DB
}

// NewCelestialBodyRepository creates a new celestial body repository instance
func NewCelestialBodyRepository(db *gorm.DB) *CelestialBodyRepository {
	return &CelestialBodyRepository{db: db}
}

// CreateTable creates the celestial_bodies table if it does not exist
func (r *CelestialBodyRepository) CreateTable(ctx context.Context) error {
	query := createTableQuery
	if r.db.Dialector.Name() == "sqlite" {
		query = createTableQuerySQLite
	}
	if err := r.db.WithContext(ctx).Exec(query).Error; err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InsertMany inserts all bodies in one transaction. Nothing is committed if any insert fails.
func (r *CelestialBodyRepository) InsertMany(ctx context.Context, bodies []domain.CelestialBody) error {
	if len(bodies) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, body := range bodies {
			if err := tx.Exec(insertQuery, body.Values()...).Error; err != nil {
				return fmt.Errorf("row %d (%s): %w", i, body.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert celestial bodies: %w", err)
	}
	return nil
}

// SelectAll returns every row of the table
func (r *CelestialBodyRepository) SelectAll(ctx context.Context) ([]domain.CelestialBody, error) {
	var bodies []domain.CelestialBody
	if err := r.db.WithContext(ctx).Raw(selectQuery).Scan(&bodies).Error; err != nil {
		return nil, fmt.Errorf("failed to select celestial bodies: %w", err)
	}
	return bodies, nil
}

// SelectFrame runs the select query and returns the result as a frame
func (r *CelestialBodyRepository) SelectFrame(ctx context.Context) (*frame.Frame, error) {
	rows, err := r.db.WithContext(ctx).Raw(selectQuery).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to select celestial bodies: %w", err)
	}
	return frame.FromRows(rows)
}

// Count returns the number of rows in the table
func (r *CelestialBodyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CelestialBody{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count celestial bodies: %w", err)
	}
	return count, nil
}

// DeleteAll removes every row, keeping the table
func (r *CelestialBodyRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM celestial_bodies").Error; err != nil {
		return fmt.Errorf("failed to delete celestial bodies: %w", err)
	}
	return nil
}
