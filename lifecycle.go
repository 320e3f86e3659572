package modkit

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Initializer is implemented by instances that need initialization once
// they are constructed by an Injector.
type Initializer interface {
	OnInit(ctx context.Context) error
}

// ShutdownHook is implemented by instances that need to release resources
// when the application shuts down.
type ShutdownHook interface {
	OnShutdown(ctx context.Context) error
}

// Disposable is implemented by instances that can be closed.
//
// Example:
//
//	type DatabaseConnection struct {
//	    conn *sql.DB
//	}
//
//	func (dc *DatabaseConnection) Close() error {
//	    return dc.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// lifecycleManager records constructed instances in construction order.
type lifecycleManager struct {
	mu        sync.Mutex
	instances []any
	seen      map[any]struct{}
}

func newLifecycleManager() *lifecycleManager {
	return &lifecycleManager{
		seen: make(map[any]struct{}),
	}
}

// track records an instance if it has a shutdown hook. Comparable instances
// are recorded once.
func (m *lifecycleManager) track(instance any) {
	switch instance.(type) {
	case ShutdownHook, Disposable:
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if reflect.TypeOf(instance).Comparable() {
		if _, ok := m.seen[instance]; ok {
			return
		}
		m.seen[instance] = struct{}{}
	}

	m.instances = append(m.instances, instance)
}

// shutdown runs shutdown hooks in construction order. Every hook runs even
// when an earlier one fails.
func (m *lifecycleManager) shutdown(ctx context.Context) error {
	m.mu.Lock()
	instances := m.instances
	m.instances = nil
	m.seen = make(map[any]struct{})
	m.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		var err error
		switch v := inst.(type) {
		case ShutdownHook:
			err = v.OnShutdown(ctx)
		case Disposable:
			err = v.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", inst, err))
		}
	}

	if len(errs) > 0 {
		return ShutdownError{Errors: errs}
	}

	return nil
}

func initialize(ctx context.Context, instance any) error {
	if init, ok := instance.(Initializer); ok {
		if err := init.OnInit(ctx); err != nil {
			return fmt.Errorf("initializing %T: %w", instance, err)
		}
	}
	return nil
}
