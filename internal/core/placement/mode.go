package placement

import (
	"fmt"
	"strings"
)

// Mode selects how a trigger is turned into a world position. It is chosen
// once at startup.
type Mode uint8

const (
	// ModeSurfaceHitTest anchors at the latest platform-reported surface pose.
	ModeSurfaceHitTest Mode = iota
	// ModeScreenRaycast intersects a ray through a screen point with the
	// horizontal ground plane.
	ModeScreenRaycast
	// ModeFixedOffset anchors at a constant distance along the camera forward
	// vector.
	ModeFixedOffset
)

var modeNames = map[Mode]string{
	ModeSurfaceHitTest: "surface_hit_test",
	ModeScreenRaycast:  "screen_raycast",
	ModeFixedOffset:    "fixed_offset",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts the snake_case names plus a few spellings used by
// clients ("hit-test", "raycast", "fixed").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "surface_hit_test", "surface", "hit-test", "hit_test":
		return ModeSurfaceHitTest, nil
	case "screen_raycast", "raycast", "ground_plane":
		return ModeScreenRaycast, nil
	case "fixed_offset", "fixed", "camera":
		return ModeFixedOffset, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
