// Package audit runs scheduled integrity checks over the ledger chain
// and announces failures on the event bus.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/invario/invario/internal/events"
	"github.com/invario/invario/internal/interfaces"
	"github.com/invario/invario/internal/ledger"
)

// Auditor periodically walks the full hash chain. A broken chain is
// logged and published on the audit topic; verification never mutates
// the ledger.
type Auditor struct {
	service   *ledger.Service
	publisher interfaces.EventPublisher
	cron      *cron.Cron
	log       zerolog.Logger
}

// New creates an auditor. publisher may be nil, in which case failures
// are only logged.
func New(service *ledger.Service, publisher interfaces.EventPublisher, log zerolog.Logger) *Auditor {
	return &Auditor{
		service:   service,
		publisher: publisher,
		cron:      cron.New(),
		log:       log.With().Str("component", "audit").Logger(),
	}
}

// Start registers the audit job on the given cron schedule and starts
// the scheduler.
func (a *Auditor) Start(schedule string) error {
	_, err := a.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := a.RunOnce(ctx); err != nil {
			a.log.Error().Err(err).Msg("scheduled integrity audit failed")
		}
	})
	if err != nil {
		return err
	}

	a.cron.Start()
	a.log.Info().Str("schedule", schedule).Msg("integrity audit scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish.
func (a *Auditor) Stop() {
	ctx := a.cron.Stop()
	<-ctx.Done()
	a.log.Info().Msg("integrity audit stopped")
}

// RunOnce verifies the whole chain. On an integrity violation the
// failure is published and the violation returned.
func (a *Auditor) RunOnce(ctx context.Context) error {
	started := time.Now()
	err := a.service.VerifyIntegrity(ctx)
	if err == nil {
		a.log.Info().Dur("elapsed", time.Since(started)).Msg("integrity audit passed")
		return nil
	}

	var violation *ledger.IntegrityViolation
	if !errors.As(err, &violation) {
		return err
	}

	a.log.Error().
		Str("kind", string(violation.Kind)).
		Uint64("sequence", violation.SequenceNumber).
		Msg("ledger chain integrity violated")

	if a.publisher != nil {
		event := events.AuditFailed{
			ViolationKind:  string(violation.Kind),
			SequenceNumber: violation.SequenceNumber,
			ExpectedHash:   violation.Expected,
			ActualHash:     violation.Actual,
			DetectedAt:     time.Now().UTC(),
		}
		if pubErr := a.publisher.Publish(events.TopicAuditFailed, event); pubErr != nil {
			a.log.Error().Err(pubErr).Msg("failed to publish audit failure event")
		}
	}

	return violation
}
