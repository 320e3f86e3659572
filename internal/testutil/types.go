package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrTest        = errors.New("test error")
	ErrIntentional = errors.New("intentional error")
	ErrConstructor = errors.New("constructor error")
	ErrDisposal    = errors.New("disposal error")
)

// TestService is a basic test service
type TestService struct {
	ID        string
	CreatedAt time.Time
	Data      string
}

// NewTestService creates a new test service
func NewTestService() *TestService {
	return &TestService{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Data:      "test",
	}
}

// Recorder records events in order. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event.
func (r *Recorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Counter counts constructor calls.
type Counter struct {
	n atomic.Int64
}

// Inc increments the counter and returns the new value.
func (c *Counter) Inc() int64 { return c.n.Add(1) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// TestDatabase tracks its lifecycle hooks.
type TestDatabase struct {
	Name        string
	Initialized bool
	closed      atomic.Bool
	CloseErr    error
	recorder    *Recorder
}

// NewTestDatabase creates a database recording into r, which may be nil.
func NewTestDatabase(name string, r *Recorder) *TestDatabase {
	return &TestDatabase{Name: name, recorder: r}
}

// OnInit marks the database initialized.
func (d *TestDatabase) OnInit(ctx context.Context) error {
	d.Initialized = true
	if d.recorder != nil {
		d.recorder.Record("init:" + d.Name)
	}
	return nil
}

// Close closes the database.
func (d *TestDatabase) Close() error {
	d.closed.Store(true)
	if d.recorder != nil {
		d.recorder.Record("close:" + d.Name)
	}
	return d.CloseErr
}

// IsClosed reports whether Close was called.
func (d *TestDatabase) IsClosed() bool { return d.closed.Load() }

// IA depends on the string tokens "DA" and "DB".
type IA struct {
	DA string
	DB string
}

// NewIA creates an IA.
func NewIA(da, db string) *IA {
	return &IA{DA: da, DB: db}
}

// IB depends on IA.
type IB struct {
	IA *IA
}

// NewIB creates an IB.
func NewIB(ia *IA) *IB {
	return &IB{IA: ia}
}
