package demo

import (
	"context"
	"errors"
	"strings"

	"github.com/teaworker/teaworker/worker"
)

// EchoWorker is the default in-process worker for the demo. It greets once,
// then echoes every payload back upper-cased. The payload "boom" makes it
// report an error instead of echoing.
func EchoWorker(ctx context.Context, port *worker.Port) {
	port.Bind(func(data []byte) {
		payload := string(data)
		if payload == "boom" {
			port.Fail(errors.New("worker exploded on request"))
			return
		}
		port.Send([]byte("echo: " + strings.ToUpper(payload)))
	}, nil)

	port.Send([]byte("ready"))
	<-ctx.Done()
}
