package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teaworker/teaworker/bridge"
	"github.com/teaworker/teaworker/internal/demo"
	"github.com/teaworker/teaworker/worker"
)

func main() {
	url := flag.String("url", "", "WebSocket URL of a worker (empty = in-process worker)")
	token := flag.String("token", "", "Auth token (if the worker requires it)")
	flag.Parse()

	opts := bridge.Options{
		Parser: func(data []byte) (any, error) { return string(data), nil },
	}
	if *url != "" {
		opts.Target = *url
		if *token != "" {
			opts.Dial.Header = http.Header{"X-Teaworker-Token": []string{*token}}
		}
	} else {
		opts.Handle = worker.Spawn(demo.EchoWorker)
	}

	b, err := bridge.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(demo.New(b), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
