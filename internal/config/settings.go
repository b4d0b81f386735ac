package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nordsat/world-mosaic/internal/compositor"
	"github.com/nordsat/world-mosaic/internal/grid"
)

// AreaSize gives the pixel dimensions of a named output grid.
type AreaSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// BlendSettings configures soft-edge blending. Omitting the whole block
// from the settings file selects the hard gap-fill merge instead.
type BlendSettings struct {
	ErosionWidth float64 `yaml:"erosion_width"`
	SmoothWidth  float64 `yaml:"smooth_width"`
	Scale        bool    `yaml:"scale"`
}

// Settings is the compositing settings file. Unlike Config it describes
// the data rather than the deployment: which grid to render on, when a
// slot is complete, where mosaics go and how tiles are blended.
type Settings struct {
	AreaDef        string               `yaml:"area_def"`
	Areas          map[string]AreaSize  `yaml:"areas"`
	NumExpected    int                  `yaml:"num_expected"`
	TimeoutMinutes int                  `yaml:"timeout"`
	OutPattern     string               `yaml:"out_pattern"`
	LonLimits      map[string][]float64 `yaml:"lon_limits"`
	DisableMasking bool                 `yaml:"disable_masking"`
	Blend          *BlendSettings       `yaml:"blend_settings"`
}

// LoadSettings reads and validates the YAML settings file at path.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.AreaDef == "" {
		return errors.New("area_def is required")
	}
	reg := s.registry()
	if _, err := reg.Lookup(s.AreaDef); err != nil {
		return err
	}
	for _, def := range reg {
		if err := def.Validate(); err != nil {
			return err
		}
	}
	if s.NumExpected <= 0 {
		return errors.New("num_expected must be positive")
	}
	if s.TimeoutMinutes <= 0 {
		return errors.New("timeout must be positive")
	}
	if s.OutPattern == "" {
		return errors.New("out_pattern is required")
	}
	for sat, span := range s.LonLimits {
		if len(span) != 2 {
			return fmt.Errorf("lon_limits entry %q needs [west, east], got %d values", sat, len(span))
		}
	}
	if s.Blend != nil && (s.Blend.ErosionWidth < 0 || s.Blend.SmoothWidth < 0) {
		return errors.New("blend_settings widths must not be negative")
	}
	return nil
}

// registry converts the areas block into the grid registry.
func (s *Settings) registry() grid.Registry {
	reg := make(grid.Registry, len(s.Areas))
	for name, a := range s.Areas {
		reg[name] = grid.Definition{Name: name, Width: a.Width, Height: a.Height}
	}
	return reg
}

// Area returns the grid definition selected by area_def. Validation
// already guaranteed the lookup succeeds for loaded settings.
func (s *Settings) Area() grid.Definition {
	def, _ := s.registry().Lookup(s.AreaDef)
	return def
}

// Timeout returns how long a slot may wait for missing tiles.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

// SatelliteLimits merges the file's longitude overrides over the
// built-in coverage table. With disable_masking set it returns nil and
// tiles are used whole.
func (s *Settings) SatelliteLimits() map[string]grid.LonRange {
	if s.DisableMasking {
		return nil
	}
	limits := grid.DefaultLonLimits()
	for sat, span := range s.LonLimits {
		limits[sat] = grid.LonRange{West: span[0], East: span[1]}
	}
	return limits
}

// BlendConfig converts blend_settings for the compositor, nil when
// blending is off.
func (s *Settings) BlendConfig() *compositor.Config {
	if s.Blend == nil {
		return nil
	}
	return &compositor.Config{
		ErosionWidth: s.Blend.ErosionWidth,
		SmoothWidth:  s.Blend.SmoothWidth,
		Scale:        s.Blend.Scale,
	}
}
