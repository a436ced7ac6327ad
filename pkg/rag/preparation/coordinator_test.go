package preparation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docqa-be/internal/entity"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/engine"
	"docqa-be/pkg/rag/scope"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedAsker blocks each Ask until its document's gate is released.
type gatedAsker struct {
	mu      sync.Mutex
	gates   map[int64]chan struct{}
	answers map[int64]string
	errs    map[int64]error
	calls   []engine.Request
}

func newGatedAsker() *gatedAsker {
	return &gatedAsker{
		gates:   map[int64]chan struct{}{},
		answers: map[int64]string{},
		errs:    map[int64]error{},
	}
}

func (a *gatedAsker) gate(id int64) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.gates[id]
	if !ok {
		g = make(chan struct{})
		a.gates[id] = g
	}
	return g
}

func (a *gatedAsker) release(id int64) { close(a.gate(id)) }

func (a *gatedAsker) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *gatedAsker) call(i int) engine.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[i]
}

func (a *gatedAsker) Ask(_ context.Context, req engine.Request) (*engine.Answer, error) {
	ids := req.Scope.(scope.IDs).IDs
	id := ids[0]

	a.mu.Lock()
	a.calls = append(a.calls, req)
	a.mu.Unlock()

	<-a.gate(id)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.errs[id]; err != nil {
		return nil, err
	}
	return &engine.Answer{Text: a.answers[id]}, nil
}

type topicWrite struct {
	DocumentID int64
	Topic      string
}

type recordingStore struct {
	mu     sync.Mutex
	docs   map[int64]*entity.Document
	writes []topicWrite
}

func (s *recordingStore) FindByOwnerAndID(_ context.Context, _ uuid.UUID, id int64) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *recordingStore) UpdateTopic(_ context.Context, _ uuid.UUID, id int64, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, topicWrite{DocumentID: id, Topic: topic})
	if d, ok := s.docs[id]; ok {
		d.Topic = &topic
	}
	return nil
}

func (s *recordingStore) writesFor(id int64) []topicWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []topicWrite
	for _, w := range s.writes {
		if w.DocumentID == id {
			out = append(out, w)
		}
	}
	return out
}

type finished struct {
	mu      sync.Mutex
	results []Result
}

func (f *finished) record(_ context.Context, r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
}

func (f *finished) all() []Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Result(nil), f.results...)
}

func setup(docs ...*entity.Document) (*Coordinator, *gatedAsker, *recordingStore, *finished) {
	asker := newGatedAsker()
	store := &recordingStore{docs: map[int64]*entity.Document{}}
	for _, d := range docs {
		store.docs[d.Id] = d
	}
	fin := &finished{}
	c := NewCoordinator(uuid.New(), asker, store, Options{OnFinish: fin.record, Logger: rag.NopLogger()})
	return c, asker, store, fin
}

func wait(t *testing.T, task *Task) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)
	return res
}

func waitForCalls(t *testing.T, a *gatedAsker, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return a.callCount() >= n }, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinator_PrepareGatesUntilReady(t *testing.T) {
	c, asker, store, fin := setup(&entity.Document{Id: 1, Text: "cardiology notes"})
	asker.answers[1] = "Topic:  cardiology   report."

	task := c.Prepare(context.Background(), 1, false)
	waitForCalls(t, asker, 1)

	assert.ErrorIs(t, c.Admit(), rag.ErrStillPreparing)
	assert.Equal(t, StatePreparing, c.Status().State)

	req := asker.call(0)
	assert.Equal(t, TopicQuestion, req.Question)
	assert.Equal(t, scope.IDs{IDs: []int64{1}}, req.Scope)
	assert.Equal(t, DefaultTopK, req.TopK)

	asker.release(1)
	res := wait(t, task)

	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, "Cardiology report", res.Topic)
	assert.True(t, res.Generated)
	assert.NoError(t, c.Admit())
	assert.Equal(t, []topicWrite{{DocumentID: 1, Topic: "Cardiology report"}}, store.writesFor(1))
	require.Len(t, fin.all(), 1)
	assert.Equal(t, "Cardiology report", c.Status().Topic)
}

func TestCoordinator_DeduplicatesSameDocument(t *testing.T) {
	c, asker, _, _ := setup(&entity.Document{Id: 1, Text: "x"})
	asker.answers[1] = "Lab results"

	first := c.Prepare(context.Background(), 1, false)
	second := c.Prepare(context.Background(), 1, true)
	assert.Same(t, first, second)

	asker.release(1)
	wait(t, first)
	assert.Equal(t, 1, asker.callCount())
}

func TestCoordinator_SupersededResultIsDiscarded(t *testing.T) {
	c, asker, store, fin := setup(
		&entity.Document{Id: 1, Text: "document A"},
		&entity.Document{Id: 2, Text: "document B"},
	)
	asker.answers[1] = "Topic A"
	asker.answers[2] = "Topic B"

	taskA := c.Prepare(context.Background(), 1, false)
	waitForCalls(t, asker, 1)

	taskB := c.Prepare(context.Background(), 2, false)
	assert.Greater(t, taskB.Seq(), taskA.Seq())
	assert.False(t, taskA.IsCurrent())
	assert.True(t, taskB.IsCurrent())

	asker.release(2)
	resB := wait(t, taskB)
	assert.Equal(t, StateReady, resB.State)

	// A finishes late, after B became active
	asker.release(1)
	resA := wait(t, taskA)
	assert.True(t, resA.Superseded)

	assert.Empty(t, store.writesFor(1))
	assert.Len(t, store.writesFor(2), 1)

	status := c.Status()
	assert.Equal(t, int64(2), status.DocumentID)
	assert.Equal(t, StateReady, status.State)
	assert.Equal(t, "Topic B", status.Topic)

	results := fin.all()
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].DocumentID)
}

func TestCoordinator_ExistingTopicSkipsGeneration(t *testing.T) {
	topic := "Discharge summary"
	c, asker, store, _ := setup(&entity.Document{Id: 3, Text: "x", Topic: &topic})

	res := wait(t, c.Prepare(context.Background(), 3, false))
	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, topic, res.Topic)
	assert.False(t, res.Generated)
	assert.Zero(t, asker.callCount())
	assert.Empty(t, store.writesFor(3))
}

func TestCoordinator_ForcedWarmupKeepsStoredTopic(t *testing.T) {
	topic := "Discharge summary"
	c, asker, store, _ := setup(&entity.Document{Id: 3, Text: "x", Topic: &topic})
	asker.answers[3] = "Something else"
	asker.release(3)

	res := wait(t, c.Prepare(context.Background(), 3, true))
	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, topic, res.Topic)
	assert.Equal(t, 1, asker.callCount())
	assert.Empty(t, store.writesFor(3))
}

func TestCoordinator_Failures(t *testing.T) {
	t.Run("pipeline error", func(t *testing.T) {
		c, asker, store, fin := setup(&entity.Document{Id: 1, Text: "x"})
		asker.errs[1] = rag.ErrNoRelevantContext
		asker.release(1)

		res := wait(t, c.Prepare(context.Background(), 1, false))
		assert.Equal(t, StateFailed, res.State)
		assert.ErrorIs(t, res.Err, rag.ErrPreparationFailed)
		assert.ErrorIs(t, res.Err, rag.ErrNoRelevantContext)
		assert.ErrorIs(t, c.Admit(), rag.ErrPreparationFailed)
		assert.Empty(t, store.writesFor(1))
		assert.Len(t, fin.all(), 1)
	})

	t.Run("empty topic", func(t *testing.T) {
		c, asker, _, _ := setup(&entity.Document{Id: 1, Text: "x"})
		asker.answers[1] = " ... "
		asker.release(1)

		res := wait(t, c.Prepare(context.Background(), 1, false))
		assert.Equal(t, StateFailed, res.State)
	})

	t.Run("missing document", func(t *testing.T) {
		c, asker, _, _ := setup()
		res := wait(t, c.Prepare(context.Background(), 42, false))
		assert.Equal(t, StateFailed, res.State)
		assert.ErrorIs(t, res.Err, rag.ErrNoContext)
		assert.Zero(t, asker.callCount())
	})
}

func TestCoordinator_Cancel(t *testing.T) {
	c, asker, store, fin := setup(&entity.Document{Id: 1, Text: "x"})
	asker.answers[1] = "Late topic"

	task := c.Prepare(context.Background(), 1, false)
	waitForCalls(t, asker, 1)
	c.Cancel()
	assert.NoError(t, c.Admit())
	assert.Equal(t, StateIdle, c.Status().State)

	asker.release(1)
	res := wait(t, task)
	assert.True(t, res.Superseded)
	assert.Empty(t, store.writesFor(1))
	assert.Empty(t, fin.all())
}

func TestCoordinator_IdleAdmits(t *testing.T) {
	c, _, _, _ := setup()
	assert.NoError(t, c.Admit())
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestTask_WaitHonoursContext(t *testing.T) {
	c, _, _, _ := setup(&entity.Document{Id: 1, Text: "x"})
	task := c.Prepare(context.Background(), 1, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := task.Wait(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

// blockingStore holds UpdateTopic until released or its context ends.
type blockingStore struct {
	recordingStore
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore(docs ...*entity.Document) *blockingStore {
	s := &blockingStore{
		recordingStore: recordingStore{docs: map[int64]*entity.Document{}},
		entered:        make(chan struct{}, 1),
		release:        make(chan struct{}),
	}
	for _, d := range docs {
		s.docs[d.Id] = d
	}
	return s
}

func (s *blockingStore) UpdateTopic(ctx context.Context, owner uuid.UUID, id int64, topic string) error {
	s.entered <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.recordingStore.UpdateTopic(ctx, owner, id, topic)
}

func returnsWithin(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("call did not return within %s", d)
	}
}

func TestCoordinator_ReadersDoNotWaitOnTopicWrite(t *testing.T) {
	store := newBlockingStore(&entity.Document{Id: 1, Text: "x"})
	asker := newGatedAsker()
	asker.answers[1] = "Radiology"
	asker.release(1)
	c := NewCoordinator(uuid.New(), asker, store, Options{Logger: rag.NopLogger()})

	task := c.Prepare(context.Background(), 1, false)
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("topic write never started")
	}

	returnsWithin(t, 200*time.Millisecond, func() {
		assert.ErrorIs(t, c.Admit(), rag.ErrStillPreparing)
		assert.Equal(t, StatePreparing, c.Status().State)
		c.Cancel()
		assert.NoError(t, c.Admit())
	})

	close(store.release)
	res := wait(t, task)
	assert.True(t, res.Superseded)
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestCoordinator_TopicWriteIsBounded(t *testing.T) {
	store := newBlockingStore(&entity.Document{Id: 1, Text: "x"})
	asker := newGatedAsker()
	asker.answers[1] = "Radiology"
	asker.release(1)
	c := NewCoordinator(uuid.New(), asker, store, Options{WriteTimeout: 20 * time.Millisecond, Logger: rag.NopLogger()})

	res := wait(t, c.Prepare(context.Background(), 1, false))
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.ErrorIs(t, c.Admit(), rag.ErrPreparationFailed)
	assert.Empty(t, store.writesFor(1))
}

func TestCoordinator_ActivationWaitsForTopicWrite(t *testing.T) {
	store := newBlockingStore(
		&entity.Document{Id: 1, Text: "a"},
		&entity.Document{Id: 2, Text: "b"},
	)
	asker := newGatedAsker()
	asker.answers[1] = "Topic A"
	asker.release(1)
	c := NewCoordinator(uuid.New(), asker, store, Options{Logger: rag.NopLogger()})

	taskA := c.Prepare(context.Background(), 1, false)
	<-store.entered

	activated := make(chan *Task, 1)
	go func() { activated <- c.Prepare(context.Background(), 2, false) }()

	select {
	case <-activated:
		t.Fatal("activation overlapped the topic write")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	resA := wait(t, taskA)
	assert.Equal(t, StateReady, resA.State)
	assert.Len(t, store.writesFor(1), 1)

	taskB := <-activated
	assert.Greater(t, taskB.Seq(), taskA.Seq())
	assert.ErrorIs(t, c.Admit(), rag.ErrStillPreparing)
}
