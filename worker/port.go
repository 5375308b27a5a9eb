package worker

import "sync"

// Port is one end of an in-process message pipe. Ports deliver to their peer
// endpoint: Send on one end invokes the message slot bound on the other.
// Traffic sent before the peer binds its slots is queued and flushed on Bind,
// in order.
//
// A Port is itself an EventTarget, so a bare port can serve as a
// caller-supplied bridge handle.
type Port struct {
	mu        sync.Mutex
	peer      *Port
	onMessage func([]byte)
	onError   func(error)
	pending   []event
	closed    bool
}

// event is a queued delivery: exactly one of data or err is set.
type event struct {
	data []byte
	err  error
}

// Pipe returns two connected ports.
func Pipe() (*Port, *Port) {
	a := &Port{}
	b := &Port{}
	a.peer = b
	b.peer = a
	return a, b
}

// Kind reports that a port has direct event slots.
func (p *Port) Kind() Kind { return KindEvent }

// Bind registers the message and error slots and flushes any queued traffic.
func (p *Port) Bind(onMessage func([]byte), onError func(error)) {
	p.mu.Lock()
	p.onMessage = onMessage
	p.onError = onError
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ev := range pending {
		if ev.err != nil {
			if onError != nil {
				onError(ev.err)
			}
			continue
		}
		if onMessage != nil {
			onMessage(ev.data)
		}
	}
}

// Send delivers data to the peer endpoint's message slot.
func (p *Port) Send(data []byte) error {
	peer, err := p.peerFor()
	if err != nil {
		return err
	}
	return peer.deliver(event{data: data})
}

// Fail delivers err to the peer endpoint's error slot. Workers use it to
// report failures without tearing the pipe down.
func (p *Port) Fail(failure error) error {
	peer, err := p.peerFor()
	if err != nil {
		return err
	}
	return peer.deliver(event{err: failure})
}

// Close marks this end closed. Sends from either end fail with ErrClosed
// afterward; nothing already delivered is recalled.
func (p *Port) Close() error {
	p.mu.Lock()
	p.closed = true
	p.pending = nil
	p.mu.Unlock()
	return nil
}

func (p *Port) peerFor() (*Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	return p.peer, nil
}

func (p *Port) deliver(ev event) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.onMessage == nil && p.onError == nil {
		p.pending = append(p.pending, ev)
		p.mu.Unlock()
		return nil
	}
	onMessage := p.onMessage
	onError := p.onError
	p.mu.Unlock()

	if ev.err != nil {
		if onError != nil {
			onError(ev.err)
		}
		return nil
	}
	if onMessage != nil {
		onMessage(ev.data)
	}
	return nil
}
