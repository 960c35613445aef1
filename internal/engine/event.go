package engine

import "time"

// Op names an engine operation.
type Op string

const (
	OpAdd    Op = "add"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
	OpSync   Op = "sync"
	OpClear  Op = "clear"
)

type EventKind int

const (
	// EventStarted is emitted once an operation is admitted.
	EventStarted EventKind = iota
	// EventFinished is emitted after the gate is released.
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "sync_started"
	case EventFinished:
		return "sync_finished"
	default:
		return "unknown"
	}
}

// Event brackets every admitted operation: one Started, then one Finished.
type Event struct {
	Kind EventKind
	Op   Op
	ID   string
	At   time.Time
	Err  error // set on Finished when the operation failed
}
