package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"propfinder/server/internal/logging"
	"propfinder/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// PredictionQueue is an in-memory queue of prediction audit batches. Pushes
// never block the request path.
type PredictionQueue struct {
	items    chan []*models.PredictionLog
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func([]*models.PredictionLog) error
}

// NewPredictionQueue creates a queue holding up to bufferSize batches
func NewPredictionQueue(bufferSize int, logger *logrus.Logger) *PredictionQueue {
	logger = logging.OrDefault(logger)
	return &PredictionQueue{
		items:    make(chan []*models.PredictionLog, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]*models.PredictionLog) error, 0),
	}
}

// Push adds a batch of logs to the queue
func (q *PredictionQueue) Push(logs []*models.PredictionLog) error {
	// The read lock is held across the send so Close cannot close the
	// channel underneath it
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- logs:
		q.logger.WithField("batch_size", len(logs)).Debug("Pushed batch to queue")
		return nil
	default:
		q.logger.WithFields(logrus.Fields{
			"max_size":   q.maxSize,
			"batch_size": len(logs),
		}).Warn("Queue is full, dropping batch")
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *PredictionQueue) Subscribe(handler func([]*models.PredictionLog) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *PredictionQueue) Start() {
	go q.process()
}

// process hands every batch to the handlers until the queue is closed and
// drained
func (q *PredictionQueue) process() {
	defer close(q.done)
	for batch := range q.items {
		q.processBatch(batch)
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *PredictionQueue) processBatch(batch []*models.PredictionLog) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and prevents new items from being added. Batches
// already queued are still delivered.
func (q *PredictionQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.items)
	return nil
}

// Wait blocks until a started queue has been closed and drained
func (q *PredictionQueue) Wait() {
	<-q.done
}

// Len returns the current number of batches in the queue
func (q *PredictionQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *PredictionQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
