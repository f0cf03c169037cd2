package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// InMemoryEventStore keeps streams in memory and notifies subscribers synchronously,
// in append order, after the store lock is released.
type InMemoryEventStore struct {
	streams     map[string][]Event
	versions    map[string]int
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	position    int
	allEvents   []Event
	retention   int
	logger      logrus.FieldLogger
}

// StoreOption configures an InMemoryEventStore
type StoreOption func(*InMemoryEventStore)

// WithRetention keeps only the newest limit events, overall and per stream. Versions and
// positions keep counting past evicted events. A limit of 0 makes the store dispatch-only.
func WithRetention(limit int) StoreOption {
	return func(s *InMemoryEventStore) {
		if limit >= 0 {
			s.retention = limit
		}
	}
}

func NewInMemoryEventStore(logger logrus.FieldLogger, opts ...StoreOption) *InMemoryEventStore {
	s := &InMemoryEventStore{
		streams:     make(map[string][]Event),
		versions:    make(map[string]int),
		subscribers: make(map[string][]EventHandler),
		allEvents:   make([]Event, 0),
		retention:   -1,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	s.mutex.Lock()

	s.versions[streamID]++
	eventWithVersion := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: s.versions[streamID],
	}

	if s.retention != 0 {
		s.streams[streamID] = s.retain(append(s.streams[streamID], eventWithVersion))
		s.allEvents = s.retain(append(s.allEvents, eventWithVersion))
	}
	s.position++
	handlers := append([]EventHandler(nil), s.subscribers[event.Type()]...)

	s.mutex.Unlock()

	for _, h := range handlers {
		if !h.CanHandle(eventWithVersion.Type()) {
			continue
		}
		if err := h.Handle(eventWithVersion); err != nil {
			s.logger.WithError(err).WithField("event_type", eventWithVersion.Type()).Warn("event handler failed")
		}
	}
	return nil
}

// retain drops the oldest events beyond the retention limit, reusing the backing array
func (s *InMemoryEventStore) retain(events []Event) []Event {
	if s.retention < 0 || len(events) <= s.retention {
		return events
	}
	n := copy(events, events[len(events)-s.retention:])
	for i := n; i < len(events); i++ {
		events[i] = nil
	}
	return events[:n]
}

func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := s.streams[streamID]
	if len(events) == 0 {
		return []Event{}, nil
	}

	start := fromVersion - events[0].Version()
	if start < 0 {
		start = 0
	}

	if start >= len(events) {
		return []Event{}, nil
	}

	return append([]Event(nil), events[start:]...), nil
}

func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	start := fromPosition - (s.position - len(s.allEvents))
	if start < 0 {
		start = 0
	}

	if start >= len(s.allEvents) {
		return []Event{}, nil
	}

	return append([]Event(nil), s.allEvents[start:]...), nil
}

// Position returns the number of events appended so far
func (s *InMemoryEventStore) Position() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.position
}

// Retained counts the event references held by the global log and the streams
func (s *InMemoryEventStore) Retained() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	n := len(s.allEvents)
	for _, events := range s.streams {
		n += len(events)
	}
	return n
}

func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, handlers := range s.subscribers {
		newHandlers := make([]EventHandler, 0, len(handlers))
		for _, h := range handlers {
			if h != handler {
				newHandlers = append(newHandlers, h)
			}
		}
		s.subscribers[eventType] = newHandlers
	}

	return nil
}
