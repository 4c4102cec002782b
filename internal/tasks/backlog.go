package tasks

import (
	"context"
	"log"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/metrics"
	"github.com/Purplemerit/notion-realtime/internal/repository"

	"github.com/robfig/cron/v3"
)

// BacklogReporter periodically gauges how many private messages are waiting
// for an offline recipient.
type BacklogReporter struct {
	store repository.MessageStore
}

func NewBacklogReporter(store repository.MessageStore) *BacklogReporter {
	return &BacklogReporter{store: store}
}

func (b *BacklogReporter) Start() {
	c := cron.New()

	_, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := b.store.CountUndelivered(ctx)
		if err != nil {
			log.Printf("[WORKER] Backlog count failed: %v", err)
			return
		}
		metrics.UndeliveredBacklog.Set(float64(n))
	})
	if err != nil {
		log.Printf("[WORKER] Error scheduling cron: %v", err)
		return
	}

	c.Start()
}
