package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"event-signup-backend/internal/model"
)

// Kind identifies which status-change message a job carries.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindWaitlist     Kind = "waitlist"
	KindPromotion    Kind = "promotion"
	KindCancellation Kind = "cancellation"
)

// Job is one status-change notification for one student.
type Job struct {
	StudentEmail string
	Kind         Kind
	EventTitle   string
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending notifications. Delivery is
// strictly best-effort: every failure is logged and none is reported back to
// the registration flow that dispatched the job.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.process(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job for delivery. It never blocks the caller: if the
// queue is full the job is dropped with a log line, consistent with the rest
// of the best-effort policy.
func (wp *WorkerPool) Dispatch(job Job) {
	select {
	case wp.jobs <- job:
	default:
		log.Printf("Notification queue full, dropping %s for %s", job.Kind, job.StudentEmail)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// Message renders the push payload for a job.
func Message(job Job) string {
	switch job.Kind {
	case KindConfirmation:
		return fmt.Sprintf("Your spot for %q is confirmed.", job.EventTitle)
	case KindWaitlist:
		return fmt.Sprintf("%q is full; you are on the waitlist.", job.EventTitle)
	case KindPromotion:
		return fmt.Sprintf("A spot opened up: you are now confirmed for %q!", job.EventTitle)
	case KindCancellation:
		return fmt.Sprintf("Your registration for %q was cancelled.", job.EventTitle)
	}
	return fmt.Sprintf("Registration update for %q.", job.EventTitle)
}

// process fetches the student's subscriptions and fans the message out.
func (wp *WorkerPool) process(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("student_email = ?", job.StudentEmail).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for %s: %v", job.StudentEmail, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload := []byte(Message(job))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
