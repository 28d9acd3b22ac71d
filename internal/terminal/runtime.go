package terminal

import "github.com/ricochet1k/termemu"

const EventBufferSize = 256

type EventKind int

const (
	EventBell EventKind = iota
	EventDamage
	EventScroll
	EventCursor
	EventTitle
)

// Event is a coalescable notification from the emulator engine. The
// renderer only needs to know that something changed; it re-reads the
// screen under the terminal lock when it draws.
type Event struct {
	Kind   EventKind
	Region termemu.Region
	Lines  int
	X      int
	Y      int
	Title  string
}

// Frontend adapts termemu's callback interface to a channel of Events.
// Sends never block: when the channel is full the event is dropped, since
// the next damage event redraws the whole screen anyway.
type Frontend struct {
	events chan<- Event
	done   <-chan struct{}
}

func NewFrontend(events chan<- Event, done <-chan struct{}) *Frontend {
	return &Frontend{events: events, done: done}
}

func (f *Frontend) Bell() {
	f.emit(Event{Kind: EventBell})
}

func (f *Frontend) RegionChanged(r termemu.Region, _ termemu.ChangeReason) {
	f.emit(Event{Kind: EventDamage, Region: r})
}

func (f *Frontend) ScrollLines(n int) {
	f.emit(Event{Kind: EventScroll, Lines: n})
}

func (f *Frontend) CursorMoved(x, y int) {
	f.emit(Event{Kind: EventCursor, X: x, Y: y})
}

func (f *Frontend) StyleChanged(termemu.Style) {}

func (f *Frontend) ViewFlagChanged(termemu.ViewFlag, bool) {
	f.emit(Event{Kind: EventDamage})
}

func (f *Frontend) ViewIntChanged(termemu.ViewInt, int) {}

func (f *Frontend) ViewStringChanged(_ termemu.ViewString, value string) {
	f.emit(Event{Kind: EventTitle, Title: value})
}

func (f *Frontend) emit(event Event) {
	if f == nil || f.events == nil {
		return
	}
	if f.done != nil {
		select {
		case <-f.done:
			return
		default:
		}
	}

	select {
	case f.events <- event:
	default:
	}
}
