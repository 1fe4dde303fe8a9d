package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a single email queued for asynchronous delivery. OnDone, when set,
// is invoked with the send result after the attempt completes.
type Job struct {
	To      string
	Subject string
	Body    string
	OnDone  func(err error)
}

// Dispatcher delivers queued emails through a bounded worker pool. Enqueue
// never blocks the caller: when the queue is full the job is dropped and
// reported as failed.
type Dispatcher struct {
	sender      EmailSender
	queue       chan Job
	logger      zerolog.Logger
	sendTimeout time.Duration
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewDispatcher starts workers goroutines consuming from a queue of the
// given size.
func NewDispatcher(sender EmailSender, workers, queueSize int, logger zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		sender:      sender,
		queue:       make(chan Job, queueSize),
		logger:      logger,
		sendTimeout: 15 * time.Second,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	err := d.sender.SendEmail(ctx, job.To, job.Subject, job.Body)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("to", job.To).
			Str("subject", job.Subject).
			Msg("email delivery failed")
	}
	if job.OnDone != nil {
		job.OnDone(err)
	}
}

// Enqueue queues a job for delivery. It returns false when the queue is full
// or the dispatcher is closed; in that case OnDone is not invoked.
func (d *Dispatcher) Enqueue(job Job) bool {
	defer func() {
		// Recover from send on closed channel during shutdown races.
		recover()
	}()

	select {
	case d.queue <- job:
		return true
	default:
		d.logger.Warn().
			Str("to", job.To).
			Msg("email queue full, dropping message")
		return false
	}
}

// Close stops accepting jobs and waits for in-flight deliveries to finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}
