package processor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"propfinder/server/config"
	"propfinder/server/internal/database"
	"propfinder/server/internal/logging"
	"propfinder/server/internal/models"
	"propfinder/server/internal/queue"
)

// Transactor is the part of *gorm.DB the processor needs
type Transactor interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// BatchProcessor accumulates prediction logs from the queue and writes them
// to the database in batches
type BatchProcessor struct {
	db        Transactor
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.PredictionQueue
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	pending []*models.PredictionLog
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db Transactor, queue *queue.PredictionQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	logger = logging.OrDefault(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the queue and begins the periodic flush
func (p *BatchProcessor) Start() {
	p.queue.Subscribe(p.enqueue)

	p.waitGroup.Add(1)
	go p.flushLoop()
}

// Stop gracefully shuts down the processor, writing whatever is pending
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
	if err := p.Flush(); err != nil {
		p.logger.WithError(err).Error("Failed to flush prediction logs on shutdown")
	}
}

// enqueue buffers a batch and writes once the buffer is full
func (p *BatchProcessor) enqueue(batch []*models.PredictionLog) error {
	p.mu.Lock()
	p.pending = append(p.pending, batch...)
	full := len(p.pending) >= p.config.BatchProcessing.MaxBatchSize
	p.mu.Unlock()

	if full {
		return p.Flush()
	}
	return nil
}

// flushLoop writes non-full batches after MaxBatchWaitTime
func (p *BatchProcessor) flushLoop() {
	defer p.waitGroup.Done()

	wait := time.Duration(p.config.BatchProcessing.MaxBatchWaitTime) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	ticker := time.NewTicker(wait)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.Flush(); err != nil {
				p.logger.WithError(err).Error("Periodic flush failed")
			}
		}
	}
}

// Flush writes every pending log. Logs of a batch that exhausts its retries
// are dropped.
func (p *BatchProcessor) Flush() error {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return p.processBatch(batch)
}

// Pending returns the number of buffered logs
func (p *BatchProcessor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// processBatch handles a single batch of logs with transaction and retry logic
func (p *BatchProcessor) processBatch(batch []*models.PredictionLog) error {
	var err error
	for attempt := 0; attempt <= p.config.BatchProcessing.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, p.config.BatchProcessing.MaxRetries)
			time.Sleep(time.Duration(p.config.BatchProcessing.RetryDelay) * time.Second)
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			return database.InsertPredictionLogs(tx, batch)
		})

		if err == nil {
			p.logger.WithField("batch_size", len(batch)).Debug("Wrote prediction log batch")
			return nil
		}

		p.logger.Errorf("Batch processing failed: %v", err)
	}

	return fmt.Errorf("failed to process batch after %d attempts: %w", p.config.BatchProcessing.MaxRetries+1, err)
}
