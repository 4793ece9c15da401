/**
 * @description
 * Periodic reconciliation for the print queue. Operators occasionally hold a
 * job and forget about it; the sweep finds holds older than the configured
 * cutoff and returns them to the queue tail so they are not lost. It also
 * drops expired operator sessions from stores without native expiry.
 *
 * The sweep is idempotent and safe to run concurrently with operator
 * actions: every resume goes through the same guarded store transition, so
 * a job an operator just resumed is simply skipped.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/autoprint/print-service/internal/store"
)

// ResumeStaleHolds re-queues every held job whose last update predates the
// configured hold cutoff. Returns the number of jobs resumed.
func (s *Service) ResumeStaleHolds(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.holdMaxAge)
	stale, err := s.repo.ListStaleHeldJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, job := range stale {
		if _, err := s.ResumePrintJob(ctx, job.ID); err != nil {
			// Lost the race with an operator action; nothing to do.
			if errors.Is(err, store.ErrInvalidJobState) || errors.Is(err, store.ErrPrintJobNotFound) {
				continue
			}
			log.Printf("WARN: failed to resume stale held job %s: %v", job.ID, err)
			continue
		}
		resumed++
	}
	if resumed > 0 {
		log.Printf("ResumeStaleHolds: re-queued %d stale held job(s)", resumed)
	}
	return resumed, nil
}

// SweepSessions drops expired operator sessions.
func (s *Service) SweepSessions(ctx context.Context) {
	removed, err := s.sessions.Sweep(ctx)
	if err != nil {
		log.Printf("WARN: session sweep failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("SweepSessions: dropped %d expired session(s)", removed)
	}
}
