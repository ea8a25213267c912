package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dronesurvey/missioncore/internal/domain"
)

// BaseSeed is one base entry in the fleet seed file.
type BaseSeed struct {
	ID                  string  `yaml:"id"`
	Name                string  `yaml:"name"`
	Lat                 float64 `yaml:"lat"`
	Lng                 float64 `yaml:"lng"`
	Status              string  `yaml:"status"`
	MaxDrones           int     `yaml:"max_drones"`
	OperationalRadiusKm float64 `yaml:"operational_radius_km"`
}

// DroneSeed is one drone entry in the fleet seed file.
type DroneSeed struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Model        string  `yaml:"model"`
	BaseID       string  `yaml:"base_id"`
	BatteryLevel float64 `yaml:"battery_level"`
	Status       string  `yaml:"status"`
	MaxSpeed     float64 `yaml:"max_speed"`
}

// FleetSeed holds the bases and drones a process should start with,
// mirroring the shape of the teacher's drones.yaml one level up: a
// registry of bases plus the drones stationed at them.
type FleetSeed struct {
	Bases  []BaseSeed  `yaml:"bases"`
	Drones []DroneSeed `yaml:"drones"`
}

// LoadFleetSeed loads a fleet seed from a YAML file.
func LoadFleetSeed(path string) (*FleetSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet seed: %w", err)
	}

	var seed FleetSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse fleet seed: %w", err)
	}

	return &seed, nil
}

// ToDomainBases converts the seed's base entries into domain.Base values.
func (f *FleetSeed) ToDomainBases() []domain.Base {
	out := make([]domain.Base, 0, len(f.Bases))
	for _, b := range f.Bases {
		status := domain.BaseStatus(b.Status)
		if status == "" {
			status = domain.BaseActive
		}
		out = append(out, domain.Base{
			BaseID:              b.ID,
			Name:                b.Name,
			Location:            domain.Location{Lat: b.Lat, Lng: b.Lng},
			Status:              status,
			MaxDrones:           b.MaxDrones,
			OperationalRadiusKm: b.OperationalRadiusKm,
		})
	}
	return out
}

// ToDomainDrones converts the seed's drone entries into domain.Drone values.
func (f *FleetSeed) ToDomainDrones() []domain.Drone {
	byBase := make(map[string]domain.Location)
	for _, b := range f.Bases {
		byBase[b.ID] = domain.Location{Lat: b.Lat, Lng: b.Lng}
	}

	out := make([]domain.Drone, 0, len(f.Drones))
	for _, d := range f.Drones {
		status := domain.DroneStatus(d.Status)
		if status == "" {
			status = domain.DroneAvailable
		}
		home := byBase[d.BaseID]
		out = append(out, domain.Drone{
			DroneID:        d.ID,
			Name:           d.Name,
			Model:          d.Model,
			BatteryLevel:   d.BatteryLevel,
			Location:       home,
			HomeBaseCoords: home,
			BaseID:         d.BaseID,
			Status:         status,
			Health:         domain.HealthGood,
			MaxSpeed:       d.MaxSpeed,
		})
	}
	return out
}
