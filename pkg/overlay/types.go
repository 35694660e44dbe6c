package overlay

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LngLat is a geographic coordinate in degrees.
type LngLat struct {
	Lng float64
	Lat float64
}

func (ll LngLat) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", ll.Lng, ll.Lat)
}

// Point is a screen-space position in pixels.
type Point struct {
	X float64
	Y float64
}

// ID identifies an entity for the lifetime of its registry.
type ID string

func newID() ID {
	if u, err := uuid.NewV7(); err == nil {
		return ID(u.String())
	}
	return ID(uuid.NewString())
}

// Visual is the rendered representation of an entity. The registry owns it
// exclusively and calls Release exactly once, after unmounting.
type Visual interface {
	SetPosition(p Point)
	Release()
}

// Container is the mount point shared by all visuals.
type Container interface {
	Mount(v Visual)
	Unmount(v Visual)
}

// Map is the map widget collaborator.
type Map interface {
	Project(ll LngLat) Point
	MountContainer() Container
}

// VisualFactory builds the visual for a newly admitted entity.
type VisualFactory func(id ID, anchor LngLat) Visual

// Entity is a copy of one live overlay's record. Anchor, ID and CreatedAt
// never change inside the registry; editing a copy has no effect on it.
type Entity struct {
	ID        ID
	Anchor    LngLat
	Visual    Visual
	CreatedAt time.Time
}

// Age returns how long the entity has been alive at now.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
