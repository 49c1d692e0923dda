package coordinator

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/carstom/internal/ar/assembly"
)

// EventKind names a session event.
type EventKind string

const (
	EventPlaced    EventKind = "placed"
	EventRemoved   EventKind = "removed"
	EventMode      EventKind = "mode"
	EventTransform EventKind = "transform"
	EventDetection EventKind = "detection"
	EventCapture   EventKind = "capture"
	EventSurface   EventKind = "surface"
)

// Event is published to observers on the main queue after the state change
// it describes.
type Event struct {
	Kind       EventKind
	At         time.Time
	SessionID  uuid.UUID
	AssemblyID uuid.UUID
	Mode       string
	Detail     string
	// Snapshot is the affected assembly after the change, when there is one.
	Snapshot *assembly.Snapshot
	// Image is set for capture events.
	Image image.Image
}

// Observer receives session events. OnEvent runs on the main queue and must
// not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }
