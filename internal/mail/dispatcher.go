package mail

import (
	"context"
	"log"
	"time"
)

type job struct {
	to      string
	subject string
	body    string
}

// Dispatcher hands mail off to a background worker so a slow provider never
// delays an HTTP response. Enqueue never blocks; when the queue is full the
// message is dropped with a log line (a fresh code can always be requested).
type Dispatcher struct {
	sender Sender
	jobs   chan job
	done   chan struct{}
}

// NewDispatcher starts a dispatcher with a single delivery worker.
func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		jobs:   make(chan job, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules one email for delivery.
func (d *Dispatcher) Enqueue(to, subject, body string) {
	select {
	case d.jobs <- job{to: to, subject: subject, body: body}:
	default:
		log.Printf("mail queue full, dropping message to %s", MaskEmail(to))
	}
}

// Close stops accepting work and waits for in-flight deliveries to finish.
func (d *Dispatcher) Close() {
	close(d.jobs)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := d.sender.Send(ctx, j.to, j.subject, j.body); err != nil {
			log.Printf("mail delivery to %s failed: %v", MaskEmail(j.to), err)
		}
		cancel()
	}
}
