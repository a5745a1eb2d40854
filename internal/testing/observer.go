package testing

import (
	"fmt"
	"sync"

	"github.com/imamik/testnet-deploy/internal/provisioning"
)

// RecordingObserver captures everything reported to it. It is safe for use
// from fan-out workers.
type RecordingObserver struct {
	mu       sync.Mutex
	lines    []string
	events   []provisioning.Event
	progress []int
}

var _ provisioning.Observer = (*RecordingObserver)(nil)

func (o *RecordingObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, fmt.Sprintf(format, v...))
}

func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *RecordingObserver) Progress(_ string, current, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, current)
}

func (o *RecordingObserver) WithFields(map[string]string) provisioning.Observer {
	return o
}

// Lines returns the printed lines.
func (o *RecordingObserver) Lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.lines...)
}

// Events returns the emitted events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), o.events...)
}

// ProgressValues returns every reported current value in call order.
func (o *RecordingObserver) ProgressValues() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.progress...)
}
