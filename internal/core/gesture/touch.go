package gesture

import (
	"slices"

	"github.com/zeusync/xrplace/internal/core/spatial"
)

// Contact is one active touch point.
type Contact struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (c Contact) Point() spatial.Vec2 { return spatial.Vec2{X: c.X, Y: c.Y} }

// TouchSet is the set of currently active contacts ordered by ID.
type TouchSet []Contact

// NewTouchSet copies contacts into a TouchSet sorted by ID. Duplicate IDs
// keep the last reported position.
func NewTouchSet(contacts ...Contact) TouchSet {
	set := make(TouchSet, 0, len(contacts))
	for _, c := range contacts {
		if i := slices.IndexFunc(set, func(o Contact) bool { return o.ID == c.ID }); i >= 0 {
			set[i] = c
			continue
		}
		set = append(set, c)
	}
	slices.SortFunc(set, func(a, b Contact) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return set
}

func (s TouchSet) Len() int { return len(s) }

// pair returns the first two contacts.
func (s TouchSet) pair() (Contact, Contact) { return s[0], s[1] }

// Span returns the distance and angle between the first two contacts.
func (s TouchSet) Span() (distance, angle float64) {
	a, b := s.pair()
	return spatial.Distance(a.Point(), b.Point()), spatial.Angle(a.Point(), b.Point())
}
