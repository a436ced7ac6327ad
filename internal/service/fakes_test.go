package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"docqa-be/internal/entity"
	"docqa-be/pkg/events"
	pktNats "docqa-be/pkg/nats"
	"docqa-be/pkg/rag/engine"
	"docqa-be/pkg/stream"

	"github.com/google/uuid"
)

type memStore struct {
	mu     sync.Mutex
	docs   map[int64]*entity.Document
	writes map[int64]string
}

func newMemStore(docs ...*entity.Document) *memStore {
	s := &memStore{docs: map[int64]*entity.Document{}, writes: map[int64]string{}}
	for _, d := range docs {
		s.docs[d.Id] = d
	}
	return s
}

func (s *memStore) ListByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Document
	for _, d := range s.docs {
		if d.OwnerId == ownerId {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.OwnerId != ownerId {
		return nil, nil
	}
	return d, nil
}

func (s *memStore) UpdateTopic(ctx context.Context, ownerId uuid.UUID, id int64, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[id] = topic
	return nil
}

func (s *memStore) written(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.writes[id]
	return t, ok
}

// gatedEngine blocks Ask until release is closed.
type gatedEngine struct {
	mu      sync.Mutex
	calls   []engine.Request
	answer  string
	err     error
	release chan struct{}
}

func (e *gatedEngine) Ask(ctx context.Context, req engine.Request) (*engine.Answer, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()
	if e.release != nil {
		<-e.release
	}
	if e.err != nil {
		return nil, e.err
	}
	return &engine.Answer{Text: e.answer}, nil
}

func (e *gatedEngine) AskStream(ctx context.Context, req engine.Request) (*stream.Stream, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	body := io.NopCloser(strings.NewReader(`{"response":"` + e.answer + `"}` + "\n" + `{"done":true}` + "\n"))
	return stream.Open(ctx, body, nil), nil
}

func (e *gatedEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type gateFunc func(uuid.UUID) error

func (f gateFunc) Admit(userId uuid.UUID) error { return f(userId) }

type sentEvent struct {
	UserID uuid.UUID
	Event  string
	Data   interface{}
}

type recordingDelivery struct {
	ch chan sentEvent
}

func newRecordingDelivery() *recordingDelivery {
	return &recordingDelivery{ch: make(chan sentEvent, 16)}
}

func (d *recordingDelivery) Send(userID uuid.UUID, event string, data interface{}) {
	d.ch <- sentEvent{UserID: userID, Event: event, Data: data}
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
	fail      bool
	subErr    error
	handler   pktNats.EventHandler
}

func (b *fakeBus) Publish(ctx context.Context, event events.Event) error {
	if b.fail {
		return errors.New("nats: no responders")
	}
	b.mu.Lock()
	b.published = append(b.published, event)
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		return h(ctx, event)
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error {
	if b.subErr != nil {
		return b.subErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	return nil
}

type fakePinger struct {
	err   error
	calls int
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.calls++
	return p.err
}
