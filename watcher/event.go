package watcher

import "time"

// Kind is the type of change an Event reports.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
	Moved
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event is one converted file system change. From is set for Moved only.
type Event struct {
	Path       string
	From       string
	Kind       Kind
	ObservedAt time.Time
}
