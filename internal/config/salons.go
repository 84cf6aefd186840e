package config

import (
	"fmt"
	"os"

	"salonbook/internal/models"

	yamlv2 "gopkg.in/yaml.v2"
)

// LoadSalons reads the salon seed file ({salons: [...]}) and validates it.
func LoadSalons(path string) ([]models.Salon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed struct {
		Salons []models.Salon `yaml:"salons"`
	}
	if err := yamlv2.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse salons %s: %w", path, err)
	}
	if err := ValidateSalons(seed.Salons); err != nil {
		return nil, err
	}
	return seed.Salons, nil
}
