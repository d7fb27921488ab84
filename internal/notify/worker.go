package notify

import (
	"context"
	"sync"
	"time"

	"peterboroughtenants.org/internal/obs"
)

const (
	renderQueueSize = 1000
	sendQueueSize   = 500
	renderWorkers   = 2
	sendWorkers     = 2
	maxAttempts     = 3
)

// Worker runs the two-stage outbox pipeline. Messages are enqueued into a
// bounded render queue, rendered, then handed to a bounded send queue.
// Status transitions in the store are serialized under one mutex so a
// message is never claimed twice.
type Worker struct {
	store  Store
	sender Sender

	renderQ chan *Message
	sendQ   chan *Message

	mu     sync.Mutex // guards claim and delivery transitions
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

func NewWorker(store Store, sender Sender) *Worker {
	return &Worker{
		store:   store,
		sender:  sender,
		renderQ: make(chan *Message, renderQueueSize),
		sendQ:   make(chan *Message, sendQueueSize),
	}
}

// Start launches the pipeline and requeues messages left over from a
// previous run.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	pending, err := w.store.Pending(ctx, renderQueueSize)
	if err != nil {
		return err
	}
	for _, m := range pending {
		select {
		case w.renderQ <- m:
		default:
		}
	}

	for i := 0; i < renderWorkers; i++ {
		w.wg.Add(1)
		go w.renderLoop(ctx)
	}
	for i := 0; i < sendWorkers; i++ {
		w.wg.Add(1)
		go w.sendLoop(ctx)
	}
	w.wg.Add(1)
	go w.gaugeLoop(ctx)
	return nil
}

// Stop drains nothing; in-flight messages stay in the outbox and are
// requeued on the next Start.
func (w *Worker) Stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
	})
}

// Enqueue persists the message and hands it to the render queue. When the
// queue is full it returns ErrQueueFull; the row is already stored and is
// picked up again on the next Start.
func (w *Worker) Enqueue(ctx context.Context, m *Message) error {
	m.Status = StatusQueued
	m.QueuedOn = time.Now().UTC()
	if err := w.store.Enqueue(ctx, m); err != nil {
		return err
	}
	select {
	case w.renderQ <- m:
	default:
		return ErrQueueFull
	}
	return nil
}

func (w *Worker) renderLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-w.renderQ:
			if !w.claim(ctx, m, StatusRendering) {
				continue
			}
			if err := render(m); err != nil {
				w.fail(ctx, m, err)
				continue
			}
			select {
			case w.sendQ <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) sendLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-w.sendQ:
			if !w.claim(ctx, m, StatusSending) {
				continue
			}
			if err := w.sender.Send(ctx, m); err != nil {
				w.fail(ctx, m, err)
				continue
			}
			w.mu.Lock()
			err := w.store.MarkDelivered(ctx, m.ID)
			w.mu.Unlock()
			if err != nil {
				obs.LogRequest(map[string]any{
					"level": "error", "msg": "mark delivered failed",
					"message_id": m.ID, "error": err.Error(),
				})
			}
		}
	}
}

func (w *Worker) claim(ctx context.Context, m *Message, status string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.store.MarkStatus(ctx, m.ID, status, ""); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error", "msg": "claim failed",
			"message_id": m.ID, "error": err.Error(),
		})
		return false
	}
	m.Status = status
	return true
}

func (w *Worker) fail(ctx context.Context, m *Message, cause error) {
	m.Attempts++
	status := StatusQueued
	if m.Attempts >= maxAttempts {
		status = StatusFailed
	}
	w.mu.Lock()
	err := w.store.MarkStatus(ctx, m.ID, status, cause.Error())
	w.mu.Unlock()
	if err != nil {
		obs.LogRequest(map[string]any{
			"level": "error", "msg": "record failure failed",
			"message_id": m.ID, "error": err.Error(),
		})
		return
	}
	m.Status = status
	if status == StatusQueued {
		select {
		case w.renderQ <- m:
		default:
		}
	}
	obs.LogRequest(map[string]any{
		"level": "warn", "msg": "email delivery attempt failed",
		"message_id": m.ID, "attempts": m.Attempts, "error": cause.Error(),
	})
}

func (w *Worker) gaugeLoop(ctx context.Context) {
	defer w.wg.Done()
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			obs.SetEmailQueueDepth("render", len(w.renderQ))
			obs.SetEmailQueueDepth("send", len(w.sendQ))
		}
	}
}
