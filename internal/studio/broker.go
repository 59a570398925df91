package studio

import "sync"

// Event is one export update fanned out to subscribers.
type Event struct {
	Type      string  `json:"type"`
	JobID     string  `json:"job_id"`
	ProjectID string  `json:"project_id"`
	Status    string  `json:"status,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Progress  float64 `json:"progress"`
	Error     string  `json:"error,omitempty"`
}

const (
	EventStage    = "stage"
	EventProgress = "progress"
	EventStatus   = "status"
)

const subscriberBuffer = 64

type subscriber struct {
	projectID string
	ch        chan Event
}

// Broker fans events out to subscribers. A subscriber that stops draining
// is dropped instead of blocking the export.
type Broker struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel of events for projectID, or for every project
// when projectID is empty. The returned func unsubscribes and closes the
// channel.
func (b *Broker) Subscribe(projectID string) (<-chan Event, func()) {
	s := &subscriber{projectID: projectID, ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() { b.remove(s) })
	}
}

func (b *Broker) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.projectID != "" && s.projectID != ev.ProjectID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			delete(b.subs, s)
			close(s.ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
