// Package selection implements drag-to-move for placed objects: grab a
// selectable node with a pan gesture and slide it along the surface it sits
// on.
package selection

import (
	"fmt"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
)

// Phase is the state of a pan gesture.
type Phase int

const (
	Began Phase = iota
	Changed
	Ended
	Cancelled
	Failed
)

func (p Phase) String() string {
	switch p {
	case Began:
		return "began"
	case Changed:
		return "changed"
	case Ended:
		return "ended"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// dragHitTypes are the surfaces a dragged node may slide across.
const dragHitTypes = arsession.HitExistingPlane | arsession.HitEstimatedVerticalPlane

// Handle is the node currently being dragged.
type Handle struct {
	Node  *scenegraph.Node
	Start arsession.ScreenPoint
	Moves int
}

// Tracker follows one pan gesture at a time.
type Tracker struct {
	session arsession.Session
	nodes   arsession.NodeHitTester
	mask    scenegraph.Category
	active  *Handle
}

// NewTracker returns a tracker that grabs nodes matching mask.
func NewTracker(session arsession.Session, nodes arsession.NodeHitTester, mask scenegraph.Category) *Tracker {
	return &Tracker{session: session, nodes: nodes, mask: mask}
}

// Active returns the current handle, or nil between gestures.
func (t *Tracker) Active() *Handle { return t.active }

// Handle dispatches a gesture phase. It returns true when the phase changed
// the selection or moved a node.
func (t *Tracker) Handle(phase Phase, pt arsession.ScreenPoint) bool {
	switch phase {
	case Began:
		return t.Began(pt)
	case Changed:
		return t.Changed(pt)
	case Ended:
		return t.Ended()
	case Cancelled:
		return t.Cancelled()
	case Failed:
		return t.Failed()
	}
	return false
}

// Began grabs the nearest selectable node under pt. A miss leaves nothing
// selected.
func (t *Tracker) Began(pt arsession.ScreenPoint) bool {
	t.active = nil
	if t.nodes == nil {
		return false
	}
	for _, hit := range t.nodes.HitTestNodes(pt, t.mask) {
		n := hit.Node.Ancestor(func(n *scenegraph.Node) bool { return n.Category&t.mask != 0 })
		if n == nil {
			continue
		}
		t.active = &Handle{Node: n, Start: pt}
		return true
	}
	return false
}

// Changed slides the selected node to the surface point under pt, keeping
// its offset along the surface normal.
func (t *Tracker) Changed(pt arsession.ScreenPoint) bool {
	if t.active == nil {
		return false
	}
	results := t.session.HitTest(pt, dragHitTypes)
	if len(results) == 0 {
		return false
	}
	world := results[0].Position()
	n := t.active.Node
	local := world
	if p := n.Parent(); p != nil {
		local = p.ConvertFromWorld(world)
	}
	n.Position.X = local.X
	n.Position.Y = local.Y
	t.active.Moves++
	return true
}

// Ended clears the selection.
func (t *Tracker) Ended() bool { return t.clear() }

// Cancelled clears the selection.
func (t *Tracker) Cancelled() bool { return t.clear() }

// Failed clears the selection.
func (t *Tracker) Failed() bool { return t.clear() }

func (t *Tracker) clear() bool {
	had := t.active != nil
	t.active = nil
	return had
}
