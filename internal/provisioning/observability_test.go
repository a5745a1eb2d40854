package provisioning

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObserver is a test implementation of Observer that records events.
type MockObserver struct {
	mu       sync.Mutex
	events   []Event
	messages []string
	fields   map[string]string
}

func NewMockObserver() *MockObserver {
	return &MockObserver{fields: make(map[string]string)}
}

func (m *MockObserver) Printf(format string, v ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf(format, v...))
}

func (m *MockObserver) Event(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockObserver) Progress(phase string, current, total int) {
	m.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d", current, total),
	})
}

func (m *MockObserver) WithFields(_ map[string]string) Observer {
	return m
}

func (m *MockObserver) eventsOfType(t EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func bufferObserver() (*ConsoleObserver, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewConsoleObserverWithLogger(log.New(&buf, "", 0)), &buf
}

func TestConsoleObserver_EventFormatting(t *testing.T) {
	t.Parallel()
	observer, buf := bufferObserver()

	observer.WithFields(map[string]string{"run_id": "abc", "deployment": "beta"}).Event(Event{
		Type:    EventMachineWaiting,
		Phase:   "Provision Normal Nodes",
		Machine: "beta-node-3",
		Message: "waiting for SSH",
		Fields:  map[string]string{"address": "10.0.0.3"},
	})

	assert.Equal(t,
		"machine.waiting [Provision Normal Nodes] machine=beta-node-3 waiting for SSH (address=10.0.0.3, deployment=beta, run_id=abc)\n",
		buf.String())
}

func TestConsoleObserver_EventFieldsTakePrecedence(t *testing.T) {
	t.Parallel()
	observer, buf := bufferObserver()

	observer.WithFields(map[string]string{"role": "generic"}).Event(Event{
		Type:    EventStageFailed,
		Message: "boom",
		Fields:  map[string]string{"role": "uploader"},
	})
	assert.Contains(t, buf.String(), "role=uploader")
	assert.NotContains(t, buf.String(), "role=generic")
}

func TestConsoleObserver_Progress(t *testing.T) {
	t.Parallel()
	observer, buf := bufferObserver()

	observer.Progress("rsync", 1, 4)
	observer.Progress("rsync", 0, 0)
	assert.Equal(t, "[rsync] Progress: 1/4 (25%)\n[rsync] Progress: 0/0\n", buf.String())
}

func TestConsoleObserver_WithFieldsDoesNotMutateParent(t *testing.T) {
	t.Parallel()
	parent := NewConsoleObserver()
	child := parent.WithFields(map[string]string{"k": "v"})

	require.IsType(t, &ConsoleObserver{}, child)
	assert.Empty(t, parent.contextFields)
	assert.Equal(t, "v", child.(*ConsoleObserver).contextFields["k"])
}

func TestPhaseHelpers(t *testing.T) {
	t.Parallel()
	observer := NewMockObserver()

	LogPhaseStart(observer, "infra")
	LogPhaseComplete(observer, "infra", 1500*time.Millisecond)
	LogPhaseFailed(observer, "infra", errors.New("quota"))

	require.Len(t, observer.events, 3)
	assert.Equal(t, EventPhaseStarted, observer.events[0].Type)
	assert.Equal(t, "completed in 1.5s", observer.events[1].Message)
	assert.Equal(t, "failed: quota", observer.events[2].Message)
}
