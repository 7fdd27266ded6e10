package placement

// EventKind identifies a change to the overlay
type EventKind int

const (
	EventAdded EventKind = iota
	EventUpdated
	EventSelected
	EventDeselected
	EventDeleted
	EventPageRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventSelected:
		return "selected"
	case EventDeselected:
		return "deselected"
	case EventDeleted:
		return "deleted"
	case EventPageRemoved:
		return "page_removed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every overlay mutation
type Event struct {
	Kind EventKind
	Page int
	ID   string
}

type observers struct {
	next int
	fns  map[int]func(Event)
}

func (o *observers) subscribe(fn func(Event)) func() {
	if o.fns == nil {
		o.fns = make(map[int]func(Event))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() { delete(o.fns, id) }
}

func (o *observers) emit(e Event) {
	for _, fn := range o.fns {
		fn(e)
	}
}
