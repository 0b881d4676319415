package inbound

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/router"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	shardBuffer          = 16
)

// Handler processes one event; router.Router satisfies it.
type Handler interface {
	Handle(ctx context.Context, evt router.InboundEvent) error
}

// Deduper claims message ids. RedisDeduper is the production implementation.
type Deduper interface {
	Claim(ctx context.Context, messageID string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

// Worker drains the queue into a Handler. A single receive loop routes each
// event to a shard chosen by its patient key, and every shard handles its
// events one at a time, so a patient's messages run in arrival order while
// different patients run in parallel.
type Worker struct {
	handler Handler
	queue   Queue
	logger  *logging.Logger
	cfg     workerConfig
	shards  []chan job
	wg      sync.WaitGroup
}

type job struct {
	msg Message
	evt router.InboundEvent
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	dedup            Deduper
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of handler shards.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize caps messages fetched per receive call.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithDeduper skips events whose WhatsApp message id was already claimed.
func WithDeduper(d Deduper) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.dedup = d
	}
}

// NewWorker builds a worker. Panics on nil handler or queue.
func NewWorker(handler Handler, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("inbound: handler cannot be nil")
	}
	if queue == nil {
		panic("inbound: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	shards := make([]chan job, cfg.workers)
	for i := range shards {
		shards[i] = make(chan job, shardBuffer)
	}
	return &Worker{handler: handler, queue: queue, logger: logger, cfg: cfg, shards: shards}
}

// Start launches the receive loop and the shard goroutines. They stop once
// ctx is cancelled and the shards have drained what was already received.
func (w *Worker) Start(ctx context.Context) {
	for i, ch := range w.shards {
		w.wg.Add(1)
		go w.runShard(ctx, i+1, ch)
	}
	w.wg.Add(1)
	go w.receive(ctx)
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// shardFor maps a patient key to a fixed shard index.
func (w *Worker) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(w.shards)))
}

func (w *Worker) receive(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		for _, ch := range w.shards {
			close(ch)
		}
	}()
	w.logger.Debug("inbound receiver started", "shards", len(w.shards))

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("inbound receiver stopping")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("failed to receive inbound events", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.route(msg)
		}
	}
}

// route decodes msg and hands it to its patient's shard. Undecodable bodies
// are deleted. Blocks while the shard is full.
func (w *Worker) route(msg Message) {
	evt, err := decodeEvent(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable inbound event", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	w.shards[w.shardFor(evt.LockKey())] <- job{msg: msg, evt: evt}
}

func (w *Worker) runShard(ctx context.Context, shardID int, jobs <-chan job) {
	defer w.wg.Done()
	w.logger.Debug("inbound shard started", "shard_id", shardID)
	for j := range jobs {
		w.process(ctx, j.msg, j.evt)
	}
	w.logger.Debug("inbound shard stopped", "shard_id", shardID)
}

// process deletes the message unless the handler failed in a way a
// redelivery could fix.
func (w *Worker) process(ctx context.Context, msg Message, evt router.InboundEvent) {
	claimed := false
	if w.cfg.dedup != nil && evt.MessageID != "" {
		ok, err := w.cfg.dedup.Claim(ctx, evt.MessageID)
		switch {
		case err != nil:
			w.logger.Warn("dedup claim failed, processing anyway", "error", err, "message_id", evt.MessageID)
		case !ok:
			w.logger.Info("skipping duplicate inbound event", "message_id", evt.MessageID, "event_id", evt.ID)
			w.deleteMessage(msg.ReceiptHandle)
			return
		default:
			claimed = true
		}
	}

	err := w.handler.Handle(ctx, evt)
	switch {
	case err == nil:
		w.logger.Debug("inbound event processed", "event_id", evt.ID, "type", evt.Type)
	case errors.Is(err, router.ErrInvalidEvent):
		w.logger.Warn("dropping invalid inbound event", "error", err, "event_id", evt.ID)
	default:
		w.logger.Error("inbound event failed, leaving for redelivery", "error", err, "event_id", evt.ID)
		if claimed {
			if relErr := w.cfg.dedup.Release(context.Background(), evt.MessageID); relErr != nil {
				w.logger.Warn("dedup release failed", "error", relErr, "message_id", evt.MessageID)
			}
		}
		return
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound event", "error", err)
	}
}
