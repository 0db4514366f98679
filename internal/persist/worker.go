// Package persist records already-broadcast messages and read marks off the
// live path. Jobs go through bounded per-shard queues; a room always maps to
// the same shard, so its writes keep their enqueue order.
package persist

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

var (
	ErrQueueFull = errors.New("persistence queue full")
	ErrClosed    = errors.New("persistence worker closed")
)

// Store is the durable side of the bridge.
type Store interface {
	AppendMessage(ctx context.Context, m *domain.Message) error
	UpsertReadStatus(ctx context.Context, roomID, userID string, at time.Time) error
}

type Config struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	MaxAttempts  int
	Backoff      time.Duration
}

type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Appended  int64 `json:"appended"`
	ReadMarks int64 `json:"readMarks"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type jobKind int

const (
	jobAppend jobKind = iota
	jobReadMark
)

type job struct {
	kind   jobKind
	msg    *domain.Message
	roomID string
	userID string
	at     time.Time
}

type Worker struct {
	store Store
	cfg   Config
	log   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queues []chan job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once

	enqueued  atomic.Int64
	appended  atomic.Int64
	readMarks atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func New(store Store, cfg Config, log *slog.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}

	perShard := cfg.QueueSize / cfg.Workers
	if perShard < 1 {
		perShard = 1
	}
	queues := make([]chan job, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan job, perShard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:  store,
		cfg:    cfg,
		log:    logger.Component(log, "persist"),
		queues: queues,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches one goroutine per shard. Calling it twice is a no-op.
func (w *Worker) Start() {
	w.start.Do(func() {
		for i, q := range w.queues {
			w.wg.Add(1)
			go w.run(i, q)
		}
		w.log.Info("persistence worker started", "shards", len(w.queues), "queue_size", w.cfg.QueueSize)
	})
}

// EnqueueMessage hands a broadcast message to the bridge without blocking.
func (w *Worker) EnqueueMessage(m *domain.Message) error {
	return w.enqueue(job{kind: jobAppend, msg: m, roomID: m.RoomID})
}

// EnqueueReadMark records that userID has read roomID up to at.
func (w *Worker) EnqueueReadMark(roomID, userID string, at time.Time) error {
	return w.enqueue(job{kind: jobReadMark, roomID: roomID, userID: userID, at: at})
}

func (w *Worker) enqueue(j job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return ErrClosed
	}
	select {
	case w.queues[shard(j.roomID, len(w.queues))] <- j:
		w.enqueued.Add(1)
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to drain. When ctx ends
// first, in-flight writes are cancelled and ctx.Err() is returned.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, q := range w.queues {
		close(q)
	}
	w.mu.Unlock()

	// queued jobs still need a consumer when Start was never called
	w.Start()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		w.log.Info("persistence worker drained", slog.Any("stats", w.Stats()))
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		w.log.Warn("persistence worker drain interrupted", slog.Any("stats", w.Stats()))
		return ctx.Err()
	}
}

func (w *Worker) Stats() Stats {
	return Stats{
		Enqueued:  w.enqueued.Load(),
		Appended:  w.appended.Load(),
		ReadMarks: w.readMarks.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
	}
}

func (w *Worker) run(idx int, q <-chan job) {
	defer w.wg.Done()
	for j := range q {
		w.process(idx, j)
	}
}

func (w *Worker) process(idx int, j job) {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		err = w.apply(j)
		if err == nil || permanent(err) || attempt == w.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * w.cfg.Backoff):
		case <-w.ctx.Done():
		}
		if w.ctx.Err() != nil {
			break
		}
	}

	if err == nil {
		switch j.kind {
		case jobAppend:
			w.appended.Add(1)
		case jobReadMark:
			w.readMarks.Add(1)
		}
		return
	}

	w.failed.Add(1)
	attrs := []any{"shard", idx, "room_id", j.roomID, logger.Err(err)}
	if j.kind == jobAppend {
		attrs = append(attrs, "msg_id", j.msg.ID, "user_id", j.msg.Sender.ID)
		w.log.Warn("persist message failed", attrs...)
		return
	}
	attrs = append(attrs, "user_id", j.userID)
	w.log.Warn("persist read mark failed", attrs...)
}

func (w *Worker) apply(j job) error {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.WriteTimeout)
	defer cancel()

	switch j.kind {
	case jobAppend:
		return w.store.AppendMessage(ctx, j.msg)
	case jobReadMark:
		return w.store.UpsertReadStatus(ctx, j.roomID, j.userID, j.at)
	default:
		return errors.New("unknown job kind")
	}
}

func permanent(err error) bool {
	return errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrEmptyContent) ||
		errors.Is(err, context.Canceled)
}

func shard(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
