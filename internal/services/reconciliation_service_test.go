package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smehubhq/payments-service/internal/models"
	"github.com/smehubhq/payments-service/internal/webhook"
	"github.com/smehubhq/payments-service/internal/worker"
)

const (
	testSecret = "whsec_test_123"
	testRef    = "DON-1700000000000-AB12CD"
)

// --- mock stores ---

type memTxnStore struct {
	mu          sync.Mutex
	byRef       map[string]models.Transaction
	failWrites  int // fail this many ApplyTerminalTransition calls first
	transitions int
}

func newMemTxnStore() *memTxnStore {
	return &memTxnStore{byRef: make(map[string]models.Transaction)}
}

func (s *memTxnStore) seedPending(ref string, gross, fee int64) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := models.Transaction{
		ID:                "txn-" + ref,
		ExternalReference: ref,
		Type:              models.TxnDonation,
		GrossAmount:       gross,
		PlatformFeeAmount: fee,
		NetAmount:         gross - fee,
		Currency:          "NGN",
		Status:            models.TxnPending,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	s.byRef[ref] = tx
	return tx
}

func (s *memTxnStore) CreatePending(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRef[tx.ExternalReference]; exists {
		return models.Transaction{}, models.ErrReferenceExists
	}
	tx.Status = models.TxnPending
	s.byRef[tx.ExternalReference] = tx
	return tx, nil
}

func (s *memTxnStore) GetByReference(ctx context.Context, ref string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byRef[ref]
	if !ok {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	return tx, nil
}

// Conditional update under one lock, mirroring the UPDATE ... WHERE
// status='pending' row-count contract of the postgres implementation.
func (s *memTxnStore) ApplyTerminalTransition(ctx context.Context, ref string, to models.TransactionStatus, providerTxnID string, rawPayload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites > 0 {
		s.failWrites--
		return false, errors.New("connection reset by peer")
	}
	tx, ok := s.byRef[ref]
	if !ok || tx.Status != models.TxnPending {
		return false, nil
	}
	tx.Status = to
	if tx.ProviderTxnID == nil && providerTxnID != "" {
		tx.ProviderTxnID = &providerTxnID
	}
	tx.RawPayload = rawPayload
	tx.UpdatedAt = time.Now()
	s.byRef[ref] = tx
	s.transitions++
	return true, nil
}

type memAuditStore struct {
	mu      sync.Mutex
	records []models.WebhookAudit
}

func (s *memAuditStore) Create(ctx context.Context, a models.WebhookAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, a)
	return nil
}

func (s *memAuditStore) outcomes() []models.WebhookOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WebhookOutcome, len(s.records))
	for i, r := range s.records {
		out[i] = r.Outcome
	}
	return out
}

type memPublisher struct {
	mu        sync.Mutex
	published []models.Transaction
}

func (p *memPublisher) PublishSettled(ctx context.Context, txn models.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, txn)
	return nil
}

// --- fixture ---

type engineFixture struct {
	svc    *ReconciliationService
	txns   *memTxnStore
	audits *memAuditStore
	events *memPublisher
	wp     *worker.Pool
}

func newEngineFixture(t *testing.T, retry RetryPolicy) *engineFixture {
	t.Helper()
	f := &engineFixture{
		txns:   newMemTxnStore(),
		audits: &memAuditStore{},
		events: &memPublisher{},
		wp:     worker.NewPool(2),
	}
	f.svc = NewReconciliationService(
		webhook.NewVerifier(testSecret), f.txns, f.audits, f.wp, f.events, retry,
	)
	return f
}

// drain waits for async audit/publish jobs; call once, before assertions.
func (f *engineFixture) drain() { f.wp.Stop() }

func signedPayload(event, ref string, amount int64) (body []byte, sig string) {
	body = []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q,"id":421033,"amount":%d}}`, event, ref, amount))
	sig = webhook.NewVerifier(testSecret).Sign(body)
	return body, sig
}

// --- tests ---

func TestProcessWebhookHappyPath(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.success", testRef, 10_000)
	res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, res.Outcome)

	stored, _ := f.txns.GetByReference(context.Background(), testRef)
	assert.Equal(t, models.TxnCompleted, stored.Status)
	require.NotNil(t, stored.ProviderTxnID)
	assert.Equal(t, "421033", *stored.ProviderTxnID)
	assert.Equal(t, int64(9_500), stored.NetAmount)

	assert.Equal(t, []models.WebhookOutcome{models.OutcomeApplied}, f.audits.outcomes())
	assert.Len(t, f.events.published, 1)
}

func TestProcessWebhookIdempotentDuplicates(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.success", testRef, 10_000)

	const n = 5
	for i := 0; i < n; i++ {
		res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, models.OutcomeApplied, res.Outcome)
		} else {
			assert.Equal(t, models.OutcomeDuplicate, res.Outcome)
		}
	}
	f.drain()

	assert.Equal(t, 1, f.txns.transitions, "exactly one state transition")
	assert.Len(t, f.audits.outcomes(), n)
	assert.Len(t, f.events.published, 1, "downstream side effect fires once")
}

func TestProcessWebhookNeverRegressesTerminalState(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.success", testRef, 10_000)
	_, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	settled, _ := f.txns.GetByReference(context.Background(), testRef)

	// a late "failed" must not flip the settled outcome
	failBody, failSig := signedPayload("charge.failed", testRef, 10_000)
	res, err := f.svc.ProcessWebhook(context.Background(), failBody, failSig)
	f.drain()

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeConflict, res.Outcome)

	after, _ := f.txns.GetByReference(context.Background(), testRef)
	assert.Equal(t, settled.Status, after.Status)
	assert.Equal(t, settled.ProviderTxnID, after.ProviderTxnID)
	assert.Equal(t, settled.NetAmount, after.NetAmount)
	assert.Equal(t, 1, f.txns.transitions)
}

func TestProcessWebhookAmountMismatchRefused(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.success", testRef, 9_000)
	res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAmountMismatch, res.Outcome)

	stored, _ := f.txns.GetByReference(context.Background(), testRef)
	assert.Equal(t, models.TxnPending, stored.Status, "row must stay pending")
	assert.Equal(t, 0, f.txns.transitions)
}

func TestProcessWebhookUnknownReference(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})

	body, sig := signedPayload("charge.success", "DON-0000000000000-ZZ99ZZ", 10_000)
	res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	require.NoError(t, err, "missing reference is acknowledged, not errored")
	assert.Equal(t, models.OutcomeReferenceNotFound, res.Outcome)
	assert.Empty(t, f.txns.byRef, "no row may be created")
	assert.Equal(t, []models.WebhookOutcome{models.OutcomeReferenceNotFound}, f.audits.outcomes())
}

func TestProcessWebhookInvalidSignatureNeverTouchesLedger(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.success", testRef, 10_000)
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-5] ^= 0x01

	res, err := f.svc.ProcessWebhook(context.Background(), tampered, sig)
	f.drain()

	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, models.OutcomeInvalidSignature, res.Outcome)

	stored, _ := f.txns.GetByReference(context.Background(), testRef)
	assert.Equal(t, models.TxnPending, stored.Status)
	assert.Equal(t, 0, f.txns.transitions)

	require.Len(t, f.audits.records, 1)
	assert.False(t, f.audits.records[0].SignatureValid)
}

func TestProcessWebhookUnknownEventUnprocessable(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("subscription.create", testRef, 10_000)
	res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnprocessable, res.Outcome)
	assert.Equal(t, 0, f.txns.transitions)
}

func TestProcessWebhookPendingProgressEventIsNoop(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.pending", testRef, 10_000)
	res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStillPending, res.Outcome)
	assert.Equal(t, 0, f.txns.transitions)
}

func TestProcessWebhookRetriesThenFails(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	f.txns.seedPending(testRef, 10_000, 500)
	f.txns.failWrites = 3

	body, sig := signedPayload("charge.success", testRef, 10_000)
	_, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	stored, _ := f.txns.GetByReference(context.Background(), testRef)
	assert.Equal(t, models.TxnPending, stored.Status)
}

func TestProcessWebhookRecoversWithinRetryBudget(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	f.txns.seedPending(testRef, 10_000, 500)
	f.txns.failWrites = 2

	body, sig := signedPayload("charge.success", testRef, 10_000)
	res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
	f.drain()

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, res.Outcome)
}

func TestProcessWebhookConcurrentDeliveries(t *testing.T) {
	f := newEngineFixture(t, RetryPolicy{Attempts: 1})
	f.txns.seedPending(testRef, 10_000, 500)

	body, sig := signedPayload("charge.success", testRef, 10_000)

	const n = 8
	results := make([]models.WebhookOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.ProcessWebhook(context.Background(), body, sig)
			assert.NoError(t, err)
			results[i] = res.Outcome
		}(i)
	}
	wg.Wait()
	f.drain()

	applied := 0
	for _, out := range results {
		switch out {
		case models.OutcomeApplied:
			applied++
		case models.OutcomeDuplicate:
		default:
			t.Fatalf("unexpected outcome under concurrency: %s", out)
		}
	}
	assert.Equal(t, 1, applied, "exactly one delivery wins")
	assert.Equal(t, 1, f.txns.transitions, "no lost or doubled update")
}
