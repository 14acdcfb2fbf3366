package events

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultHistorySize is how many runs the bus remembers for replay
const DefaultHistorySize = 64

// subscriberBuffer bounds each subscriber channel; a run publishes a handful
// of events, so a full buffer means the subscriber stopped reading.
const subscriberBuffer = 16

// runStream holds the events of one run and its live subscribers
type runStream struct {
	events   []Event
	subs     map[int]chan Event
	finished bool
}

func (s *runStream) closeSubscribers() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Bus fans progress events out to subscribers of a run. Every event is kept
// so late subscribers get the full history replayed. Only the most recent
// runs are remembered.
type Bus struct {
	mu      sync.Mutex
	streams *lru.Cache[string, *runStream]
	nextSub int
	log     zerolog.Logger
}

// NewBus creates a bus remembering up to historySize runs
func NewBus(historySize int, log zerolog.Logger) (*Bus, error) {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	// Evicted runs release their subscribers; callbacks run with mu held.
	streams, err := lru.NewWithEvict[string, *runStream](historySize, func(_ string, s *runStream) {
		s.closeSubscribers()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run history: %w", err)
	}
	return &Bus{
		streams: streams,
		log:     log.With().Str("component", "event_bus").Logger(),
	}, nil
}

func (b *Bus) stream(runID string) *runStream {
	s, ok := b.streams.Get(runID)
	if !ok {
		s = &runStream{subs: make(map[int]chan Event)}
		b.streams.Add(runID, s)
	}
	return s
}

// Track registers a run before its first event, so Known reports it and
// subscribers can attach early.
func (b *Bus) Track(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream(runID)
}

// Known reports whether the bus remembers runID
func (b *Bus) Known(runID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams.Contains(runID)
}

// Publish records e and delivers it to the run's subscribers. A RunFinished
// event closes every subscriber channel.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stream(e.RunID)
	if s.finished {
		b.log.Warn().
			Str("run_id", e.RunID).
			Str("event_type", string(e.Type)).
			Msg("Event after run finished, dropping event")
		return
	}
	s.events = append(s.events, e)

	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			b.log.Warn().
				Str("run_id", e.RunID).
				Int("subscriber", id).
				Str("event_type", string(e.Type)).
				Msg("Subscriber channel full, dropping event")
		}
	}

	if e.Type == RunFinished {
		s.finished = true
		s.closeSubscribers()
	}
}

// Subscribe returns the events published so far for runID and a channel for
// the ones still to come. The channel is closed after RunFinished, or at once
// when the run already finished. cancel releases the subscription early and
// is safe to call more than once.
func (b *Bus) Subscribe(runID string) (history []Event, ch <-chan Event, cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stream(runID)
	history = append([]Event(nil), s.events...)

	c := make(chan Event, subscriberBuffer)
	if s.finished {
		close(c)
		return history, c, func() {}
	}

	id := b.nextSub
	b.nextSub++
	s.subs[id] = c

	cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			close(sub)
			delete(s.subs, id)
		}
	}
	return history, c, cancel
}
