// services/sitemodel/internal/core/republish.go
package core

import (
	"context"
	"sync"

	"example.com/backstage/services/sitemodel/internal/infrastructure"
	"github.com/sirupsen/logrus"
)

// DeadLetterJournal is the replayable side of the dead-letter journal.
type DeadLetterJournal interface {
	ReadAll() ([]infrastructure.DeadLetterEntry, error)
	Replace(entries []infrastructure.DeadLetterEntry) error
}

// RepublishStats contains statistics about the republish operation
type RepublishStats struct {
	TotalProcessed int `json:"total_processed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Dropped        int `json:"dropped"`
}

// Republisher replays dead-lettered update notices.
type Republisher struct {
	journal     DeadLetterJournal
	publisher   UpdatePublisher
	logger      *logrus.Logger
	concurrency int
	maxRetries  int
	dryRun      bool
}

// NewRepublisher creates a republisher. Entries that have already failed
// maxRetries times are dropped; zero keeps them forever.
func NewRepublisher(journal DeadLetterJournal, publisher UpdatePublisher, logger *logrus.Logger,
	concurrency, maxRetries int, dryRun bool) *Republisher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Republisher{
		journal:     journal,
		publisher:   publisher,
		logger:      logger,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		dryRun:      dryRun,
	}
}

// Republish sends every journaled entry again and rewrites the journal with
// the entries that still failed.
func (r *Republisher) Republish(ctx context.Context) (*RepublishStats, error) {
	stats := &RepublishStats{}

	entries, err := r.journal.ReadAll()
	if err != nil {
		return stats, err
	}
	stats.TotalProcessed = len(entries)
	r.logger.Infof("Found %d dead-lettered messages", len(entries))

	if r.dryRun {
		r.logger.Info("DRY RUN: No messages will be sent")
		for _, entry := range entries {
			r.logger.WithFields(logrus.Fields{
				"id":      entry.ID,
				"topic":   entry.Topic,
				"retries": entry.Retries,
			}).Info("Would republish message")
		}
		return stats, nil
	}

	remaining := make([]*infrastructure.DeadLetterEntry, len(entries))
	semaphore := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i := range entries {
		semaphore <- struct{}{} // Acquire
		wg.Add(1)
		go func(i int) {
			defer func() {
				<-semaphore // Release
				wg.Done()
			}()
			remaining[i] = r.processEntry(ctx, entries[i])
		}(i)
	}
	wg.Wait()

	var keep []infrastructure.DeadLetterEntry
	for i, entry := range remaining {
		switch {
		case entry == nil:
			stats.Successful++
		case r.maxRetries > 0 && entry.Retries >= r.maxRetries:
			stats.Failed++
			stats.Dropped++
			r.logger.WithFields(logrus.Fields{
				"id":      entries[i].ID,
				"retries": entry.Retries,
			}).Warn("Dropping message after too many retries")
		default:
			stats.Failed++
			keep = append(keep, *entry)
		}
	}

	if err := r.journal.Replace(keep); err != nil {
		return stats, err
	}
	return stats, nil
}

// processEntry returns nil on success, or the entry updated with the failure.
func (r *Republisher) processEntry(ctx context.Context, entry infrastructure.DeadLetterEntry) *infrastructure.DeadLetterEntry {
	err := r.publisher.Publish(ctx, entry.Topic, entry.Data)
	if err == nil {
		r.logger.WithFields(logrus.Fields{
			"id":    entry.ID,
			"topic": entry.Topic,
		}).Debug("Message republished successfully")
		return nil
	}

	r.logger.WithError(err).WithFields(logrus.Fields{
		"id":    entry.ID,
		"topic": entry.Topic,
	}).Error("Failed to republish message")

	entry.Retries++
	entry.LastError = err.Error()
	return &entry
}
