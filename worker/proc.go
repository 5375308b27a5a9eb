package worker

import (
	"context"
	"sync"
)

// Proc runs a worker function on its own goroutine. Procs only speak port
// pairs: the bridge hands over the remote end of a pipe and the function
// receives and sends through it.
type Proc struct {
	fn     func(context.Context, *Port)
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Spawn prepares a goroutine-backed worker. The function starts on Connect
// and should return when its context is cancelled.
func Spawn(fn func(ctx context.Context, port *Port)) *Proc {
	ctx, cancel := context.WithCancel(context.Background())
	return &Proc{fn: fn, ctx: ctx, cancel: cancel}
}

// Kind reports that a proc only speaks port pairs.
func (p *Proc) Kind() Kind { return KindPort }

// Connect starts the worker function with its end of the pipe.
func (p *Proc) Connect(remote *Port) {
	p.once.Do(func() {
		go func() {
			defer remote.Close()
			p.fn(p.ctx, remote)
		}()
	})
}

// Stop cancels the worker's context. The caller owns the proc; bridges never
// stop caller-supplied targets.
func (p *Proc) Stop() {
	p.cancel()
}
