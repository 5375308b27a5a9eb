package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teaworker/teaworker/worker"
)

// fakeTarget is a caller-owned event target that records sends and lets
// tests emit worker events directly.
type fakeTarget struct {
	mu        sync.Mutex
	onMessage func([]byte)
	onError   func(error)
	sent      []string
	closed    bool
}

func (f *fakeTarget) Kind() worker.Kind { return worker.KindEvent }

func (f *fakeTarget) Bind(onMessage func([]byte), onError func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onMessage = onMessage
	f.onError = onError
}

func (f *fakeTarget) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeTarget) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTarget) emit(payload string) {
	f.mu.Lock()
	fn := f.onMessage
	f.mu.Unlock()
	fn([]byte(payload))
}

func (f *fakeTarget) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

func newAttached(t *testing.T, opts Options) (*Bridge, *fakeTarget) {
	t.Helper()
	target := &fakeTarget{}
	opts.Handle = target
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("Attach() = %v", err)
	}
	return b, target
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "neither target nor handle", opts: Options{}, wantErr: true},
		{name: "both target and handle", opts: Options{Target: "ws://x/ws", Handle: &fakeTarget{}}, wantErr: true},
		{name: "handle only", opts: Options{Handle: &fakeTarget{}}},
		{name: "target only", opts: Options{Target: "ws://x/ws"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessagesAppendInOrder(t *testing.T) {
	b, target := newAttached(t, Options{})

	for _, payload := range []string{"foo", "bar", "baz"} {
		target.emit(payload)
	}

	s := b.State()
	if len(s.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3", len(s.Messages))
	}
	for i, want := range []string{"foo", "bar", "baz"} {
		if got := string(s.Messages[i].Data.([]byte)); got != want {
			t.Errorf("Messages[%d] = %q, want %q", i, got, want)
		}
	}
	if got := string(s.Data.([]byte)); got != "baz" {
		t.Errorf("Data = %q, want %q", got, "baz")
	}
	if len(s.Errors) != 0 || s.Err != nil {
		t.Errorf("unexpected errors: %+v", s.Errors)
	}
}

func TestMessageClearsErrButNotViceVersa(t *testing.T) {
	b, target := newAttached(t, Options{})

	target.fail(errors.New("foo"))
	s := b.State()
	if s.Err == nil || s.Err.Error() != "foo" {
		t.Fatalf("Err = %v, want foo", s.Err)
	}
	if s.Data != nil {
		t.Errorf("Data = %v, want nil after error", s.Data)
	}

	target.emit("bar")
	s = b.State()
	if s.Err != nil {
		t.Errorf("Err = %v, want nil after message", s.Err)
	}
	if got := string(s.Data.([]byte)); got != "bar" {
		t.Errorf("Data = %q, want %q", got, "bar")
	}
	if len(s.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1 (errors log untouched)", len(s.Errors))
	}
	if len(s.Messages) != 1 {
		t.Errorf("len(Messages) = %d, want 1", len(s.Messages))
	}

	// An error after data must not clear the data.
	target.fail(errors.New("late"))
	s = b.State()
	if s.Data == nil {
		t.Error("Data cleared by error")
	}
	if s.Err == nil {
		t.Error("Err not recorded")
	}
}

func TestUpdatedAtTracksEvents(t *testing.T) {
	b, target := newAttached(t, Options{})

	if !b.State().UpdatedAt.IsZero() {
		t.Error("UpdatedAt set before any event")
	}

	t1 := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	stamps := []time.Time{t1, t2}
	b.now = func() time.Time {
		now := stamps[0]
		if len(stamps) > 1 {
			stamps = stamps[1:]
		}
		return now
	}

	target.emit("a")
	if got := b.State().UpdatedAt; !got.Equal(t1) {
		t.Errorf("UpdatedAt = %v, want %v", got, t1)
	}
	target.fail(errors.New("x"))
	if got := b.State().UpdatedAt; !got.Equal(t2) {
		t.Errorf("UpdatedAt = %v, want %v", got, t2)
	}
	if got := b.State().Messages[0].ReceivedAt; !got.Equal(t1) {
		t.Errorf("Messages[0].ReceivedAt = %v, want %v", got, t1)
	}
}

func TestPostBeforeAttach(t *testing.T) {
	b, err := New(Options{Handle: &fakeTarget{}})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := b.Post("x"); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Post() = %v, want ErrNotAttached", err)
	}
	if !b.State().LastPostAt.IsZero() {
		t.Error("LastPostAt set by failed Post")
	}
}

func TestPostDispatchesAndStamps(t *testing.T) {
	b, target := newAttached(t, Options{})

	if err := b.Post("hello"); err != nil {
		t.Fatalf("Post() = %v", err)
	}
	if err := b.Post([]byte("raw")); err != nil {
		t.Fatalf("Post([]byte) = %v", err)
	}

	want := []string{"hello", "raw"}
	if !reflect.DeepEqual(target.sent, want) {
		t.Errorf("sent = %v, want %v", target.sent, want)
	}
	if b.State().LastPostAt.IsZero() {
		t.Error("LastPostAt not set")
	}
}

func TestPostRejectsUnserializable(t *testing.T) {
	b, target := newAttached(t, Options{})

	if err := b.Post(struct{ X int }{1}); err == nil {
		t.Error("Post(struct) without serializer succeeded")
	}
	if len(target.sent) != 0 {
		t.Errorf("sent = %v, want none", target.sent)
	}
}

func TestJSONParserAndSerializer(t *testing.T) {
	b, target := newAttached(t, Options{
		Parser: func(data []byte) (any, error) {
			var v map[string]string
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
		Serializer: json.Marshal,
	})

	target.emit(`{"foo":"bar"}`)
	got, ok := b.State().Data.(map[string]string)
	if !ok || got["foo"] != "bar" {
		t.Errorf("Data = %#v, want map with foo=bar", b.State().Data)
	}

	if err := b.Post(map[string]string{"foo": "bar"}); err != nil {
		t.Fatalf("Post() = %v", err)
	}
	if len(target.sent) != 1 || target.sent[0] != `{"foo":"bar"}` {
		t.Errorf("sent = %v, want [{\"foo\":\"bar\"}]", target.sent)
	}
}

func TestParserFailureRecordedAsError(t *testing.T) {
	b, target := newAttached(t, Options{
		Parser: func(data []byte) (any, error) {
			var v map[string]string
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	})

	target.emit("not json")
	s := b.State()
	if len(s.Messages) != 0 {
		t.Errorf("len(Messages) = %d, want 0", len(s.Messages))
	}
	if len(s.Errors) != 1 || s.Err == nil {
		t.Fatalf("parse failure not recorded: %+v", s)
	}
	if !strings.Contains(s.Err.Error(), "parse message") {
		t.Errorf("Err = %v, want parse message wrap", s.Err)
	}
}

func TestCallbacksAfterCommit(t *testing.T) {
	var messages []string
	var failures []string
	b, target := newAttached(t, Options{
		OnMessage: func(data any) { messages = append(messages, string(data.([]byte))) },
		OnError:   func(err error) { failures = append(failures, err.Error()) },
	})

	target.emit("a")
	target.fail(errors.New("b"))

	if !reflect.DeepEqual(messages, []string{"a"}) {
		t.Errorf("OnMessage saw %v, want [a]", messages)
	}
	if !reflect.DeepEqual(failures, []string{"b"}) {
		t.Errorf("OnError saw %v, want [b]", failures)
	}
	if len(b.State().Messages) != 1 || len(b.State().Errors) != 1 {
		t.Errorf("state not committed before callbacks: %+v", b.State())
	}
}

func TestAttachLifecycle(t *testing.T) {
	b, _ := newAttached(t, Options{})

	if err := b.Attach(context.Background()); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second Attach() = %v, want ErrAlreadyAttached", err)
	}

	b.Teardown()
	if err := b.Attach(context.Background()); !errors.Is(err, ErrTornDown) {
		t.Errorf("Attach after Teardown = %v, want ErrTornDown", err)
	}
	if err := b.Post("x"); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Post after Teardown = %v, want ErrNotAttached", err)
	}
}

func TestTeardownLeavesCallerHandleOpen(t *testing.T) {
	b, target := newAttached(t, Options{})
	b.Teardown()
	if target.closed {
		t.Error("caller-supplied handle was closed by Teardown")
	}
}

func TestLateCallbacksDroppedAfterTeardown(t *testing.T) {
	b, target := newAttached(t, Options{
		OnMessage: func(any) { t.Error("OnMessage after teardown") },
		OnError:   func(error) { t.Error("OnError after teardown") },
	})
	b.Teardown()

	target.emit("late")
	target.fail(errors.New("late"))

	s := b.State()
	if len(s.Messages) != 0 || len(s.Errors) != 0 {
		t.Errorf("state mutated after teardown: %+v", s)
	}
}

func TestTeardownClosesOwnedSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	disconnected := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(disconnected)
				return
			}
		}
	}))
	defer srv.Close()

	b, err := New(Options{Target: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("Attach() = %v", err)
	}

	b.Teardown()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("owned socket not closed by Teardown")
	}
}

func TestPortTargetWiring(t *testing.T) {
	proc := worker.Spawn(func(ctx context.Context, port *worker.Port) {
		port.Bind(func(data []byte) {
			port.Send([]byte("echo: " + string(data)))
		}, nil)
		<-ctx.Done()
	})
	defer proc.Stop()

	b, err := New(Options{
		Handle: proc,
		Parser: func(data []byte) (any, error) { return string(data), nil },
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := b.Attach(context.Background()); err != nil {
		t.Fatalf("Attach() = %v", err)
	}
	defer b.Teardown()

	if err := b.Post("hi"); err != nil {
		t.Fatalf("Post() = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if s := b.State(); s.Data == "echo: hi" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no echo through port wiring, state: %+v", b.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWaitDeliversStateMsg(t *testing.T) {
	b, target := newAttached(t, Options{})
	target.emit("payload")

	got := b.Wait(context.Background())()
	msg, ok := got.(StateMsg)
	if !ok {
		t.Fatalf("Wait cmd returned %T, want StateMsg", got)
	}
	if got := string(msg.State.Data.([]byte)); got != "payload" {
		t.Errorf("StateMsg.State.Data = %q, want %q", got, "payload")
	}
}

func TestWaitStopsOnCancel(t *testing.T) {
	b, _ := newAttached(t, Options{})

	// Drain the attach-time snapshot so the next Wait blocks on the context.
	if msg := b.Wait(context.Background())(); msg == nil {
		t.Fatal("no attach-time snapshot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := b.Wait(ctx)(); msg != nil {
		t.Errorf("Wait with cancelled context = %v, want nil", msg)
	}
}
