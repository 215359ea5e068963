package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/api/metrics"
	"github.com/structo/structo-api/internal/infrastructure/mail"
)

const (
	defaultWorkers = 2
	channelBuffer  = 256
	sendTimeout    = 30 * time.Second
)

// Dispatcher delivers mail in the background using a fixed set of workers.
// Messages are sharded by recipient so one recipient's mail keeps its order.
// Enqueue never blocks the caller.
type Dispatcher struct {
	workers []chan mail.Message
	sender  mail.Sender
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender mail.Sender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan mail.Message, numWorkers),
		sender:  sender,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan mail.Message, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Each worker drains its channel
// until Close is called; ctx bounds the individual sends.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands msg to the worker responsible for its recipient. It returns
// false when the shard is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(msg mail.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.MailMessagesTotal.WithLabelValues(msg.Template, "dropped").Inc()
		return false
	}

	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return true
	default:
		metrics.MailMessagesTotal.WithLabelValues(msg.Template, "dropped").Inc()
		d.log.Warn().Int("worker_id", idx).Str("template", msg.Template).Msg("mail queue full, message dropped")
		return false
	}
}

// Close stops accepting messages and waits until queued ones are processed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan mail.Message) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for msg := range ch {
		metrics.MailQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		d.deliver(ctx, id, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, msg mail.Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(sendCtx, msg)
	metrics.MailSendDuration.WithLabelValues(msg.Template).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MailMessagesTotal.WithLabelValues(msg.Template, "failed").Inc()
		d.log.Error().Err(err).
			Str("template", msg.Template).
			Int("worker_id", id).
			Msg("mail delivery failed")
		return
	}
	metrics.MailMessagesTotal.WithLabelValues(msg.Template, "sent").Inc()
}
