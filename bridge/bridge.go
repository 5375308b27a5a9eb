// Package bridge connects a Bubble Tea program to a background worker. A
// Bridge owns (or borrows) a worker target, folds its message and error
// events into a session State, and publishes every snapshot to an observable
// that descendant views read without prop threading.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teaworker/teaworker/observe"
	"github.com/teaworker/teaworker/worker"
)

var (
	// ErrNotAttached is returned by Post when no worker is bound, either
	// because Attach has not run or because the bridge was torn down.
	ErrNotAttached = errors.New("bridge: not attached")
	// ErrAlreadyAttached is returned by a second Attach.
	ErrAlreadyAttached = errors.New("bridge: already attached")
	// ErrTornDown is returned by Attach after Teardown. Torn down is
	// terminal; build a new bridge to reattach.
	ErrTornDown = errors.New("bridge: torn down")
)

// Options configure a bridge.
type Options struct {
	// Target is a WebSocket URL to dial. The bridge owns the resulting
	// socket and closes it on teardown. Mutually exclusive with Handle.
	Target string
	// Dial is passed through verbatim when Target is set.
	Dial worker.DialOptions
	// Handle is a caller-owned target used as-is. The bridge never closes
	// it; its owner remains responsible.
	Handle worker.Target

	// Parser transforms inbound payloads. Nil keeps the raw bytes.
	Parser func(data []byte) (any, error)
	// Serializer transforms outbound payloads. Nil passes []byte and
	// string through unchanged.
	Serializer func(v any) ([]byte, error)

	// OnMessage, if set, is invoked with each parsed payload after the
	// state update is committed.
	OnMessage func(data any)
	// OnError, if set, is invoked with each recorded error after the
	// state update is committed.
	OnError func(err error)
}

// StateMsg carries a fresh session snapshot into the host program.
type StateMsg struct {
	State State
}

type phase int

const (
	unattached phase = iota
	attached
	tornDown
)

// Bridge binds one worker target to one session State.
type Bridge struct {
	opts Options

	mu     sync.Mutex
	phase  phase
	state  State
	send   func([]byte) error
	closer io.Closer    // owned handle, nil when caller-supplied
	local  *worker.Port // local pipe end for port-wired targets

	obs     *observe.Value[State]
	updates <-chan State

	now func() time.Time
}

// New validates opts and returns an unattached bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Target != "" && opts.Handle != nil {
		return nil, errors.New("bridge: target and handle are mutually exclusive")
	}
	if opts.Target == "" && opts.Handle == nil {
		return nil, errors.New("bridge: a target or handle is required")
	}
	obs := observe.NewValue(State{})
	return &Bridge{
		opts:    opts,
		obs:     obs,
		updates: obs.Subscribe(),
		now:     time.Now,
	}, nil
}

// Attach resolves the worker target and binds its events. A caller-supplied
// handle is used verbatim; a Target URL is dialled and owned. Event targets
// are bound directly; port-only targets get the remote end of a fresh pipe.
func (b *Bridge) Attach(ctx context.Context) error {
	b.mu.Lock()
	switch b.phase {
	case attached:
		b.mu.Unlock()
		return ErrAlreadyAttached
	case tornDown:
		b.mu.Unlock()
		return ErrTornDown
	}
	b.mu.Unlock()

	target := b.opts.Handle
	var closer io.Closer
	if b.opts.Target != "" {
		sock, err := worker.Dial(ctx, b.opts.Target, b.opts.Dial)
		if err != nil {
			return fmt.Errorf("bridge: dial %s: %w", b.opts.Target, err)
		}
		target = sock
		closer = sock
	}

	var send func([]byte) error
	var local *worker.Port
	var bind func()
	switch target.Kind() {
	case worker.KindEvent:
		et, ok := target.(worker.EventTarget)
		if !ok {
			return fmt.Errorf("bridge: %T claims event wiring but is not an EventTarget", target)
		}
		send = et.Send
		bind = func() { et.Bind(b.handleMessage, b.handleError) }
	case worker.KindPort:
		pt, ok := target.(worker.PortTarget)
		if !ok {
			return fmt.Errorf("bridge: %T claims port wiring but is not a PortTarget", target)
		}
		var remote *worker.Port
		local, remote = worker.Pipe()
		send = local.Send
		bind = func() {
			local.Bind(b.handleMessage, b.handleError)
			pt.Connect(remote)
		}
	default:
		return fmt.Errorf("bridge: unknown target kind %v", target.Kind())
	}

	b.mu.Lock()
	if b.phase == tornDown {
		// Torn down while dialling; release anything we created.
		b.mu.Unlock()
		if closer != nil {
			closer.Close()
		}
		return ErrTornDown
	}
	b.phase = attached
	b.state = State{}
	b.send = send
	b.closer = closer
	b.local = local
	b.mu.Unlock()

	b.obs.Set(State{})
	bind()
	return nil
}

// Post serialises v and dispatches it to the worker. It records the post
// time, never blocks, and fails with ErrNotAttached when no worker is bound.
func (b *Bridge) Post(v any) error {
	data, err := b.serialize(v)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.phase != attached {
		b.mu.Unlock()
		return ErrNotAttached
	}
	send := b.send
	b.state.LastPostAt = b.now()
	snap := b.state
	b.mu.Unlock()

	b.obs.Set(snap)
	return send(data)
}

// Teardown makes the bridge inert: late worker callbacks become no-ops, and
// a handle the bridge dialled itself is closed. Caller-supplied handles are
// left untouched. Teardown is idempotent and terminal.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	if b.phase == tornDown {
		b.mu.Unlock()
		return
	}
	b.phase = tornDown
	closer := b.closer
	local := b.local
	b.send = nil
	b.closer = nil
	b.local = nil
	b.mu.Unlock()

	if local != nil {
		local.Close()
	}
	if closer != nil {
		closer.Close()
	}
}

// States returns the observation handle descendants read the session from.
func (b *Bridge) States() *observe.Value[State] {
	return b.obs
}

// State returns the current session snapshot.
func (b *Bridge) State() State {
	return b.obs.Get()
}

// Wait returns a command that blocks until the next state change and
// delivers it as a StateMsg. Re-issue it after handling each StateMsg, the
// same way a socket read loop command is re-issued.
func (b *Bridge) Wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case s := <-b.updates:
			return StateMsg{State: s}
		}
	}
}

// handleMessage folds one inbound payload into the session state. Calls that
// arrive after teardown are dropped.
func (b *Bridge) handleMessage(raw []byte) {
	data := any(raw)
	if b.opts.Parser != nil {
		parsed, err := b.opts.Parser(raw)
		if err != nil {
			// A payload the parser rejects is recorded like any
			// other worker-reported error, never thrown.
			b.handleError(fmt.Errorf("parse message: %w", err))
			return
		}
		data = parsed
	}

	b.mu.Lock()
	if b.phase != attached {
		b.mu.Unlock()
		return
	}
	now := b.now()
	b.state.Messages = append(b.state.Messages, Message{Data: data, ReceivedAt: now})
	b.state.Data = data
	b.state.Err = nil
	b.state.UpdatedAt = now
	snap := b.state
	b.mu.Unlock()

	b.obs.Set(snap)
	if b.opts.OnMessage != nil {
		b.opts.OnMessage(data)
	}
}

// handleError records one worker-reported error. Data and Messages are left
// untouched. Calls that arrive after teardown are dropped.
func (b *Bridge) handleError(err error) {
	b.mu.Lock()
	if b.phase != attached {
		b.mu.Unlock()
		return
	}
	now := b.now()
	b.state.Errors = append(b.state.Errors, Failure{Err: err, ReceivedAt: now})
	b.state.Err = err
	b.state.UpdatedAt = now
	snap := b.state
	b.mu.Unlock()

	b.obs.Set(snap)
	if b.opts.OnError != nil {
		b.opts.OnError(err)
	}
}

func (b *Bridge) serialize(v any) ([]byte, error) {
	if b.opts.Serializer != nil {
		data, err := b.opts.Serializer(v)
		if err != nil {
			return nil, fmt.Errorf("bridge: serialize: %w", err)
		}
		return data, nil
	}
	switch data := v.(type) {
	case []byte:
		return data, nil
	case string:
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("bridge: cannot serialize %T without a serializer", v)
	}
}
