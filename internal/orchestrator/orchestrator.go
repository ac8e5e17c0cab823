package orchestrator

import (
	"context"
	"log"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/queue"
	"github.com/mediapulse/mediapulse-back/internal/worker"
)

// Controller owns the generation runtime: it starts and stops the worker
// pool and releases the queue's backing connection. It is constructed
// explicitly by the composition root; nothing starts at import time.
type Controller struct {
	queue  queue.Queue
	pool   *worker.Pool
	logger *log.Logger
}

func NewController(jobQueue queue.Queue, pool *worker.Pool, logger *log.Logger) *Controller {
	return &Controller{queue: jobQueue, pool: pool, logger: logger}
}

func (c *Controller) Start(ctx context.Context) {
	c.pool.Start(ctx)
	if c.logger != nil {
		c.logger.Printf("generation workers started")
	}
}

// Stop stops new claims, waits for in-flight attempts to finish or fail,
// then closes the queue connection.
func (c *Controller) Stop() {
	c.pool.Stop()
	if err := c.queue.Close(); err != nil && c.logger != nil {
		c.logger.Printf("close queue failed: %v", err)
	}
	if c.logger != nil {
		c.logger.Printf("generation workers stopped")
	}
}

func (c *Controller) Stats(ctx context.Context) (domain.QueueStats, error) {
	return c.queue.Stats(ctx)
}
