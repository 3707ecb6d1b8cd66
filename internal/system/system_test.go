package system

import (
	"context"
	"errors"
	"testing"

	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return f.stopErr
}

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager(logger.NewNop())
	m.Register(&fakeService{name: "a", log: &events})
	m.Register(&fakeService{name: "b", log: &events})

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error: %v", err)
	}
	if err := m.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() error: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	var events []string
	m := NewManager(logger.NewNop())
	m.Register(&fakeService{name: "a", log: &events})
	m.Register(&fakeService{name: "b", startErr: errors.New("boom"), log: &events})
	m.Register(&fakeService{name: "c", log: &events})

	err := m.StartAll(context.Background())
	if err == nil {
		t.Fatal("StartAll() expected error")
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}
