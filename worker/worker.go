// Package worker defines the targets a bridge can attach to: endpoints that
// expose direct message/error event slots, and channel-only endpoints that
// communicate exclusively through port pairs.
package worker

import "errors"

// ErrClosed is returned when sending through a closed port or socket.
var ErrClosed = errors.New("worker: closed")

// Kind tags how a target is wired at attach time.
type Kind int

const (
	// KindEvent targets expose direct message/error event slots.
	KindEvent Kind = iota + 1
	// KindPort targets only speak port pairs; the bridge keeps the local
	// end of a pipe and hands the remote end over via Connect.
	KindPort
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindPort:
		return "port"
	default:
		return "unknown"
	}
}

// Target is any worker endpoint a bridge can attach to. Concrete targets
// implement EventTarget or PortTarget; Kind reports which, once, at attach
// time.
type Target interface {
	Kind() Kind
}

// EventTarget is a worker endpoint with direct message and error event slots.
type EventTarget interface {
	Target

	// Bind registers the message and error callbacks. Bind is called at
	// most once per endpoint; either callback may be nil.
	Bind(onMessage func(data []byte), onError func(err error))

	// Send dispatches a payload toward the worker. It must not block.
	Send(data []byte) error

	// Close releases the endpoint. Only endpoints the bridge created
	// itself are closed by it.
	Close() error
}

// PortTarget is a worker endpoint that cannot bind events directly. The
// bridge builds a port pair, binds the local end, and supplies the remote
// end through Connect.
type PortTarget interface {
	Target

	// Connect hands the target its end of the port pair. Called exactly
	// once, after which all traffic flows through the pair.
	Connect(remote *Port)
}
