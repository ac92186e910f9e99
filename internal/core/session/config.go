package session

import (
	"fmt"

	"github.com/zeusync/xrplace/internal/core/gesture"
	"github.com/zeusync/xrplace/internal/core/placement"
)

type AssetConfig struct {
	// Path is handed to the host untouched.
	Path string `yaml:"path" env:"PATH"`
	// InitialScale is the uniform scale of a freshly placed object. It is
	// clamped into the gesture scale bounds.
	InitialScale float64 `yaml:"initial_scale" env:"INITIAL_SCALE"`
}

type Config struct {
	Placement placement.Config `yaml:"placement" envPrefix:"PLACEMENT_"`
	Gesture   gesture.Config   `yaml:"gesture" envPrefix:"GESTURE_"`
	Asset     AssetConfig      `yaml:"asset" envPrefix:"ASSET_"`
}

func DefaultConfig() Config {
	return Config{
		Placement: placement.DefaultConfig(),
		Gesture:   gesture.DefaultConfig(),
		Asset: AssetConfig{
			Path:         "/elefante.glb",
			InitialScale: 0.5,
		},
	}
}

func (c Config) Validate() error {
	if err := c.Placement.Validate(); err != nil {
		return err
	}
	if err := c.Gesture.Validate(); err != nil {
		return err
	}
	if c.Asset.Path == "" {
		return fmt.Errorf("%w: asset path is required", ErrInvalidConfig)
	}
	if c.Asset.InitialScale <= 0 {
		return fmt.Errorf("%w: initial scale must be positive", ErrInvalidConfig)
	}
	return nil
}
