package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	name string
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.sent = append(f.sent, title)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifyFansOut(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := New([]Sender{a, b}, nil, testLogger())

	if err := n.Notify(context.Background(), EventOrdersPlaced, "title", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("sent a=%d b=%d, want 1 each", len(a.sent), len(b.sent))
	}
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "s"}
	n := New([]Sender{s}, []string{EventError}, testLogger())

	if err := n.Notify(context.Background(), EventOrdersPlaced, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 0 {
		t.Fatal("filtered event must not be delivered")
	}

	if err := n.Notify(context.Background(), EventError, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatal("allowed event must be delivered")
	}
}

func TestNotifyOneFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("webhook down")}
	good := &fakeSender{name: "good"}
	n := New([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventError, "t", "m")
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if len(good.sent) != 1 {
		t.Fatal("healthy sender must still receive the message")
	}
}

func TestNotifyNoSenders(t *testing.T) {
	n := New(nil, nil, testLogger())
	if err := n.Notify(context.Background(), EventError, "t", "m"); err != nil {
		t.Fatalf("Notify with no senders: %v", err)
	}
}
