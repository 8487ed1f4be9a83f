package patterns

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Subject represents an observable subject
type Subject interface {
	// Subscribe registers an observer
	Subscribe(observer interface{}) error
	// Unsubscribe removes an observer
	Unsubscribe(observer interface{}) error
	// Notify notifies all observers
	Notify(event interface{})
}

// Observer receives events from a Subject
type Observer interface {
	Observe(event interface{})
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(event interface{})

// Observe implements Observer
func (f ObserverFunc) Observe(event interface{}) {
	f(event)
}

// NewSubject creates a synchronous Subject.
// Observers are Observer values or plain func(interface{}).
func NewSubject() Subject {
	return &subject{}
}

type subject struct {
	mu        sync.RWMutex
	observers []interface{}
}

func (s *subject) Subscribe(observer interface{}) error {
	switch observer.(type) {
	case Observer, func(interface{}):
	default:
		return errors.Errorf("unsupported observer type %T", observer)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
	return nil
}

func (s *subject) Unsubscribe(observer interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if sameObserver(o, observer) {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return nil
		}
	}
	return errors.New("observer not found")
}

func (s *subject) Notify(event interface{}) {
	s.mu.RLock()
	observers := make([]interface{}, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, o := range observers {
		switch h := o.(type) {
		case Observer:
			h.Observe(event)
		case func(interface{}):
			h(event)
		}
	}
}

// funcs are not comparable, they are matched by code pointer
func sameObserver(a, b interface{}) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Func || vb.Kind() == reflect.Func {
		return va.Kind() == vb.Kind() && va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
	}
	if !va.Type().Comparable() || !vb.Type().Comparable() {
		return false
	}
	return a == b
}
