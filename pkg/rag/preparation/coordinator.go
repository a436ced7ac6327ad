// Package preparation computes a topic for the active document and gates
// questions until it is ready.
package preparation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"docqa-be/internal/entity"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/engine"
	"docqa-be/pkg/rag/scope"

	"github.com/google/uuid"
)

const (
	// TopicQuestion is asked of the document during preparation.
	TopicQuestion = "What is the main topic of this document?"
	DefaultTopK   = 2
	// DefaultWriteTimeout bounds the topic write made when a task finishes.
	DefaultWriteTimeout = 10 * time.Second
)

type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

// Asker runs the retrieval and generation pipeline.
type Asker interface {
	Ask(ctx context.Context, req engine.Request) (*engine.Answer, error)
}

// DocumentStore is the storage the coordinator reads topics from and
// writes them to.
type DocumentStore interface {
	FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error)
	UpdateTopic(ctx context.Context, ownerId uuid.UUID, id int64, topic string) error
}

// Result is the outcome of one task.
type Result struct {
	OwnerID    uuid.UUID
	DocumentID int64
	Seq        uint64
	State      State
	Topic      string
	// Generated is true when Topic was produced by this task rather than
	// read from storage.
	Generated bool
	// Superseded is true when a newer activation replaced this task before
	// it finished. Nothing was written.
	Superseded bool
	Err        error
}

// Status is a snapshot of the coordinator.
type Status struct {
	DocumentID int64
	Seq        uint64
	State      State
	Topic      string
	Err        error
}

type Options struct {
	TopK         int
	WriteTimeout time.Duration
	// OnFinish is called for results that were still current when they
	// completed. It runs outside the coordinator lock.
	OnFinish func(ctx context.Context, r Result)
	Logger   rag.Logger
}

// Coordinator owns the preparation state for one owner. A newer Prepare for
// a different document supersedes the in-flight task; its result is dropped.
type Coordinator struct {
	owner uuid.UUID
	asker Asker
	store DocumentStore
	opts  Options
	log   rag.Logger

	// commitMu orders activations against the topic write of a finishing
	// task. Readers only take mu, so they never wait on storage.
	commitMu sync.Mutex

	mu        sync.Mutex
	seq       uint64
	activeDoc int64
	state     State
	topic     string
	lastErr   error
	inflight  *Task
}

func NewCoordinator(owner uuid.UUID, asker Asker, store DocumentStore, opts Options) *Coordinator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Coordinator{
		owner: owner,
		asker: asker,
		store: store,
		opts:  opts,
		log:   rag.OrNop(opts.Logger),
		state: StateIdle,
	}
}

// Task is a handle on one preparation run.
type Task struct {
	coord      *Coordinator
	documentID int64
	seq        uint64
	force      bool
	done       chan struct{}
	result     Result
}

func (t *Task) DocumentID() int64 { return t.documentID }

func (t *Task) Seq() uint64 { return t.seq }

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// IsCurrent reports whether no newer activation has happened since t began.
func (t *Task) IsCurrent() bool {
	return t.coord.currentSeq() == t.seq
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Coordinator) currentSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Prepare activates documentID. If a task for the same document is already
// running it is returned instead of starting another. A stored topic makes
// the document ready at once unless force is set.
func (c *Coordinator) Prepare(ctx context.Context, documentID int64, force bool) *Task {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	c.mu.Lock()
	if c.inflight != nil && c.inflight.documentID == documentID {
		t := c.inflight
		c.mu.Unlock()
		return t
	}

	c.seq++
	t := &Task{
		coord:      c,
		documentID: documentID,
		seq:        c.seq,
		force:      force,
		done:       make(chan struct{}),
	}
	c.inflight = t
	c.activeDoc = documentID
	c.state = StatePreparing
	c.topic = ""
	c.lastErr = nil
	c.mu.Unlock()

	c.log.Info("PreparationCoordinator", "Preparation started", map[string]interface{}{
		"owner_id":    c.owner,
		"document_id": documentID,
		"seq":         t.seq,
	})

	go c.run(context.WithoutCancel(ctx), t)
	return t
}

// Cancel invalidates any in-flight task and returns to idle. A topic write
// already under way still completes but its state change is dropped.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.inflight = nil
	c.activeDoc = 0
	c.state = StateIdle
	c.topic = ""
	c.lastErr = nil
}

// Admit reports whether questions may be asked now. It fails while the
// active document is preparing or after its preparation failed.
func (c *Coordinator) Admit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePreparing:
		return fmt.Errorf("document %d: %w", c.activeDoc, rag.ErrStillPreparing)
	case StateFailed:
		return fmt.Errorf("document %d: %w", c.activeDoc, rag.ErrPreparationFailed)
	default:
		return nil
	}
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		DocumentID: c.activeDoc,
		Seq:        c.seq,
		State:      c.state,
		Topic:      c.topic,
		Err:        c.lastErr,
	}
}

func (c *Coordinator) run(ctx context.Context, t *Task) {
	defer close(t.done)

	// 1. Read the stored topic
	doc, err := c.store.FindByOwnerAndID(ctx, c.owner, t.documentID)
	if err == nil && doc == nil {
		err = rag.ErrNoContext
	}
	if err != nil {
		c.finish(ctx, t, "", false, fmt.Errorf("load document: %w", err))
		return
	}

	existing := ""
	if doc.HasTopic() {
		existing = strings.TrimSpace(*doc.Topic)
	}
	if existing != "" && !t.force {
		c.finish(ctx, t, existing, false, nil)
		return
	}

	// 2. Run the pipeline against this document only
	answer, err := c.asker.Ask(ctx, engine.Request{
		OwnerID:  c.owner,
		Question: TopicQuestion,
		Scope:    scope.IDs{IDs: []int64{t.documentID}},
		TopK:     c.opts.TopK,
	})
	if err != nil {
		c.finish(ctx, t, "", false, err)
		return
	}

	// 3. A forced warm-up keeps the stored topic
	if existing != "" {
		c.finish(ctx, t, existing, false, nil)
		return
	}

	topic := NormalizeTopic(answer.Text)
	if topic == "" {
		c.finish(ctx, t, "", false, fmt.Errorf("topic generation returned empty: %w", rag.ErrGenerationFailure))
		return
	}
	c.finish(ctx, t, topic, true, nil)
}

// finish applies the outcome if t is still current. No activation can
// happen between the sequence check and the topic write.
func (c *Coordinator) finish(ctx context.Context, t *Task, topic string, generated bool, cause error) {
	res := Result{
		OwnerID:    c.owner,
		DocumentID: t.documentID,
		Seq:        t.seq,
		Topic:      topic,
		Generated:  generated,
	}

	c.commitMu.Lock()
	if !t.IsCurrent() {
		c.commitMu.Unlock()
		c.discard(t, res, cause)
		return
	}

	if cause == nil && generated {
		if err := c.saveTopic(ctx, t.documentID, topic); err != nil {
			cause = fmt.Errorf("save topic: %w", err)
		}
	}

	c.mu.Lock()
	c.commitMu.Unlock()
	if t.seq != c.seq {
		// cancelled during the write
		c.mu.Unlock()
		c.discard(t, res, cause)
		return
	}

	if cause != nil {
		res.State = StateFailed
		res.Err = fmt.Errorf("%w: %w", rag.ErrPreparationFailed, cause)
		res.Topic = ""
		c.state = StateFailed
		c.lastErr = res.Err
	} else {
		res.State = StateReady
		c.state = StateReady
		c.topic = topic
	}
	c.inflight = nil
	t.result = res
	c.mu.Unlock()

	if res.Err != nil {
		c.log.Warn("PreparationCoordinator", "Preparation failed", map[string]interface{}{
			"document_id": t.documentID,
			"seq":         t.seq,
			"error":       res.Err.Error(),
		})
	} else {
		c.log.Info("PreparationCoordinator", "Document ready", map[string]interface{}{
			"document_id": t.documentID,
			"seq":         t.seq,
			"topic":       topic,
		})
	}

	if c.opts.OnFinish != nil {
		c.opts.OnFinish(ctx, res)
	}
}

func (c *Coordinator) saveTopic(ctx context.Context, documentID int64, topic string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	return c.store.UpdateTopic(ctx, c.owner, documentID, topic)
}

func (c *Coordinator) discard(t *Task, res Result, cause error) {
	res.Superseded = true
	res.State = StateIdle
	res.Err = cause
	t.result = res
	c.log.Info("PreparationCoordinator", "Discarding superseded result", map[string]interface{}{
		"document_id": t.documentID,
		"seq":         t.seq,
	})
}
