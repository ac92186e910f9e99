package gesture

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid gesture configuration")

// DragAxes selects which in-plane axes a one-finger drag moves along.
type DragAxes uint8

const (
	// DragAxesWorld maps screen x to world +X and screen y to world +Z.
	DragAxesWorld DragAxes = iota
	// DragAxesCamera maps screen x to the camera's horizontal right vector
	// and screen y to its horizontal backward vector.
	DragAxesCamera
)

func (a DragAxes) String() string {
	switch a {
	case DragAxesWorld:
		return "world"
	case DragAxesCamera:
		return "camera"
	default:
		return fmt.Sprintf("axes(%d)", uint8(a))
	}
}

func (a DragAxes) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *DragAxes) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "world", "":
		*a = DragAxesWorld
	case "camera", "camera_relative":
		*a = DragAxesCamera
	default:
		return fmt.Errorf("%w: unknown drag axes %q", ErrInvalidConfig, text)
	}
	return nil
}

type Config struct {
	// DragSensitivity is world units per screen pixel.
	DragSensitivity float64  `yaml:"drag_sensitivity" env:"DRAG_SENSITIVITY"`
	DragAxes        DragAxes `yaml:"drag_axes" env:"DRAG_AXES"`
	// InvertDrag flips both drag axes.
	InvertDrag bool `yaml:"invert_drag" env:"INVERT_DRAG"`

	// RotateSensitivity multiplies the two-finger angle delta before it is
	// added to yaw. Use a negative value to flip the direction.
	RotateSensitivity float64 `yaml:"rotate_sensitivity" env:"ROTATE_SENSITIVITY"`

	MinScale float64 `yaml:"min_scale" env:"MIN_SCALE"`
	MaxScale float64 `yaml:"max_scale" env:"MAX_SCALE"`
	// MinSpan is the smallest two-finger distance, in pixels, that is used as a
	// scale baseline. Smaller baselines skip the scale update.
	MinSpan float64 `yaml:"min_span" env:"MIN_SPAN"`
}

func DefaultConfig() Config {
	return Config{
		DragSensitivity:   0.005,
		DragAxes:          DragAxesWorld,
		RotateSensitivity: 1,
		MinScale:          0.1,
		MaxScale:          3,
		MinSpan:           1e-3,
	}
}

func (c Config) Validate() error {
	if c.MinScale <= 0 || c.MaxScale < c.MinScale {
		return fmt.Errorf("%w: need 0 < min_scale <= max_scale", ErrInvalidConfig)
	}
	if c.DragSensitivity < 0 {
		return fmt.Errorf("%w: drag_sensitivity must not be negative", ErrInvalidConfig)
	}
	if c.MinSpan < 0 {
		return fmt.Errorf("%w: min_span must not be negative", ErrInvalidConfig)
	}
	if c.DragAxes > DragAxesCamera {
		return fmt.Errorf("%w: unknown drag axes %d", ErrInvalidConfig, c.DragAxes)
	}
	return nil
}
