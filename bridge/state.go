package bridge

import "time"

// Message is one inbound payload after the parser transform.
type Message struct {
	Data       any
	ReceivedAt time.Time
}

// Failure is one worker-reported error.
type Failure struct {
	Err        error
	ReceivedAt time.Time
}

// State is the session read model exposed to the view tree. It is scoped to
// one attached worker: Messages and Errors only grow while the bridge is
// attached, and a fresh attach starts from zero.
type State struct {
	// Messages holds every inbound message in delivery order.
	Messages []Message
	// Errors holds every worker-reported error in delivery order.
	Errors []Failure
	// Data is the payload of the most recent message, nil before the
	// first one.
	Data any
	// Err is the most recent worker error. It is cleared the moment a new
	// message arrives; an error never clears Data.
	Err error
	// UpdatedAt is the time of the most recent message or error, zero
	// before either.
	UpdatedAt time.Time
	// LastPostAt is the time of the most recent outbound Post, zero
	// before the first.
	LastPostAt time.Time
}
