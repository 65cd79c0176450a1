package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smehubhq/payments-service/internal/metrics"
	"github.com/smehubhq/payments-service/internal/models"
	"github.com/smehubhq/payments-service/internal/notifier"
	repo "github.com/smehubhq/payments-service/internal/repository"
	"github.com/smehubhq/payments-service/internal/webhook"
	"github.com/smehubhq/payments-service/internal/worker"
)

var (
	// ErrInvalidSignature means the webhook failed authentication. Nothing was
	// mutated and the handler must answer 401.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrStoreUnavailable means the ledger write kept failing after retries.
	// The handler answers non-2xx so the provider redelivers; this is the only
	// outcome where a retry can actually help.
	ErrStoreUnavailable = errors.New("transaction store unavailable")
)

// RetryPolicy bounds ledger-write retries. Passed in from config so failure
// injection tests can run with zero backoff.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// WebhookResult is what ProcessWebhook reports back to the HTTP handler.
type WebhookResult struct {
	Outcome     models.WebhookOutcome
	Transaction *models.Transaction
}

// ReconciliationService is the single writer of terminal ledger states. Every
// inbound provider callback goes through ProcessWebhook; correctness under
// duplicate, out-of-order and concurrent delivery rests entirely on the
// store's conditional update, not on any in-process lock.
type ReconciliationService struct {
	verifier *webhook.Verifier
	txns     repo.Transactions
	audits   repo.WebhookAudits
	wp       *worker.Pool
	events   notifier.Publisher
	retry    RetryPolicy
}

func NewReconciliationService(
	verifier *webhook.Verifier,
	txns repo.Transactions,
	audits repo.WebhookAudits,
	wp *worker.Pool,
	events notifier.Publisher,
	retry RetryPolicy,
) *ReconciliationService {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &ReconciliationService{
		verifier: verifier,
		txns:     txns,
		audits:   audits,
		wp:       wp,
		events:   events,
		retry:    retry,
	}
}

// ProcessWebhook runs the full pipeline: verify signature, normalize, locate
// the transaction, apply the transition iff legal, audit the outcome.
//
// Every business-logic rejection is absorbed here (nil error, outcome tag in
// the result) so the provider gets a 2xx and stops retrying conditions a
// retry cannot fix. Only ErrInvalidSignature and ErrStoreUnavailable surface.
func (s *ReconciliationService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (WebhookResult, error) {
	if !s.verifier.Verify(rawBody, signature) {
		s.audit(models.WebhookAudit{
			SignatureValid: false,
			Outcome:        models.OutcomeInvalidSignature,
			RawPayload:     rawBody,
		})
		return s.finish(models.OutcomeInvalidSignature, nil), ErrInvalidSignature
	}

	ev := webhook.Normalize(rawBody)
	if ev.Reference == "" || ev.Event == models.EventUnknown {
		s.audit(models.WebhookAudit{
			SignatureValid: true,
			Outcome:        models.OutcomeUnprocessable,
			RawPayload:     rawBody,
		})
		return s.finish(models.OutcomeUnprocessable, nil), nil
	}

	txn, err := s.txns.GetByReference(ctx, ev.Reference)
	if errors.Is(err, models.ErrTransactionNotFound) {
		slog.Warn("webhook for unknown reference", "reference", ev.Reference)
		s.audit(models.WebhookAudit{
			SignatureValid:    true,
			Outcome:           models.OutcomeReferenceNotFound,
			ExternalReference: &ev.Reference,
			RawPayload:        rawBody,
		})
		return s.finish(models.OutcomeReferenceNotFound, nil), nil
	}
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if ev.Event == models.EventPending {
		// progress notification, nothing to transition
		s.auditFor(txn, models.OutcomeStillPending, rawBody)
		return s.finish(models.OutcomeStillPending, &txn), nil
	}

	if txn.Status.Terminal() {
		if txn.Status == ev.TargetStatus {
			s.auditFor(txn, models.OutcomeDuplicate, rawBody)
			return s.finish(models.OutcomeDuplicate, &txn), nil
		}
		// A settled outcome must never be flipped by a later delivery.
		slog.Error("conflicting terminal delivery",
			"reference", txn.ExternalReference, "status", txn.Status, "delivered", ev.TargetStatus)
		s.auditFor(txn, models.OutcomeConflict, rawBody)
		return s.finish(models.OutcomeConflict, &txn), nil
	}

	if ev.ReportedAmount != nil && *ev.ReportedAmount != txn.GrossAmount {
		slog.Error("webhook amount mismatch",
			"reference", txn.ExternalReference, "stored", txn.GrossAmount, "reported", *ev.ReportedAmount)
		s.auditFor(txn, models.OutcomeAmountMismatch, rawBody)
		return s.finish(models.OutcomeAmountMismatch, &txn), nil
	}

	applied, err := s.applyWithRetry(ctx, txn.ExternalReference, ev.TargetStatus, ev.ProviderTxnID, rawBody)
	if err != nil {
		s.auditFor(txn, models.OutcomeStoreFailure, rawBody)
		return WebhookResult{}, err
	}
	if !applied {
		// Lost the race to a concurrent delivery: the row left pending between
		// our read and the conditional write. Re-read and classify.
		fresh, ferr := s.txns.GetByReference(ctx, txn.ExternalReference)
		if ferr != nil {
			return WebhookResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, ferr)
		}
		outcome := models.OutcomeConflict
		if fresh.Status == ev.TargetStatus {
			outcome = models.OutcomeDuplicate
		}
		s.auditFor(fresh, outcome, rawBody)
		return s.finish(outcome, &fresh), nil
	}

	txn.Status = ev.TargetStatus
	if txn.ProviderTxnID == nil && ev.ProviderTxnID != "" {
		id := ev.ProviderTxnID
		txn.ProviderTxnID = &id
	}
	txn.RawPayload = rawBody
	txn.UpdatedAt = time.Now()

	metrics.TransitionsApplied.WithLabelValues(string(ev.TargetStatus)).Inc()
	slog.Info("ledger transition applied",
		"reference", txn.ExternalReference, "status", txn.Status, "provider_txn_id", ev.ProviderTxnID)
	s.auditFor(txn, models.OutcomeApplied, rawBody)

	if txn.Status == models.TxnCompleted {
		settled := txn
		s.wp.Submit(func() {
			if err := s.events.PublishSettled(context.Background(), settled); err != nil {
				slog.Error("publish settled event", "reference", settled.ExternalReference, "err", err)
			}
		})
	}
	return s.finish(models.OutcomeApplied, &txn), nil
}

func (s *ReconciliationService) applyWithRetry(ctx context.Context, ref string, to models.TransactionStatus, providerTxnID string, rawPayload []byte) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		applied, err := s.txns.ApplyTerminalTransition(ctx, ref, to, providerTxnID, rawPayload)
		if err == nil {
			return applied, nil
		}
		lastErr = err
		slog.Warn("ledger write failed", "reference", ref, "attempt", attempt, "err", err)
		if attempt < s.retry.Attempts {
			metrics.StoreRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
			case <-time.After(s.retry.Backoff * time.Duration(attempt)):
			}
		}
	}
	return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

// audit appends a webhook audit row off the request path. Best-effort: a
// failed audit write is logged but never blocks or rolls back the transition.
func (s *ReconciliationService) audit(a models.WebhookAudit) {
	s.wp.Submit(func() {
		if err := s.audits.Create(context.Background(), a); err != nil {
			slog.Error("write webhook audit", "outcome", a.Outcome, "err", err)
		}
	})
}

func (s *ReconciliationService) auditFor(txn models.Transaction, outcome models.WebhookOutcome, rawBody []byte) {
	id, ref := txn.ID, txn.ExternalReference
	s.audit(models.WebhookAudit{
		SignatureValid:    true,
		Outcome:           outcome,
		TransactionID:     &id,
		ExternalReference: &ref,
		RawPayload:        rawBody,
	})
}

func (s *ReconciliationService) finish(outcome models.WebhookOutcome, txn *models.Transaction) WebhookResult {
	metrics.WebhookEventsTotal.WithLabelValues(string(outcome)).Inc()
	return WebhookResult{Outcome: outcome, Transaction: txn}
}
