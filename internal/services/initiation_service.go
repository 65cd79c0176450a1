package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smehubhq/payments-service/internal/metrics"
	"github.com/smehubhq/payments-service/internal/models"
	"github.com/smehubhq/payments-service/internal/payments"
	"github.com/smehubhq/payments-service/internal/provider"
	repo "github.com/smehubhq/payments-service/internal/repository"
)

// referenceRetries bounds regeneration after a unique-constraint collision.
// Collisions need a same-millisecond suffix clash, so one retry is already
// paranoia.
const referenceRetries = 3

type ProviderClient interface {
	InitializeTransaction(ctx context.Context, req provider.InitializeRequest) (provider.InitializeResponse, error)
}

type InitiateInput struct {
	Amount    int64
	Currency  string
	Type      models.TransactionType
	Email     string
	UserID    *string
	DonorName *string
	Message   *string
	Anonymous bool
}

type InitiateOutput struct {
	Reference   string
	CheckoutURL string
	Fee         int64
	Net         int64
	Transaction models.Transaction
}

// InitiationService creates pending ledger rows and obtains a checkout handle
// from the gateway. The fee percentage in force at call time is baked into the
// row; later fee changes never touch existing transactions.
type InitiationService struct {
	txns    repo.Transactions
	refs    *payments.ReferenceGenerator
	gateway ProviderClient
	limits  payments.Limits
	feeBps  int64
}

func NewInitiationService(txns repo.Transactions, refs *payments.ReferenceGenerator, gateway ProviderClient, limits payments.Limits, feeBps int64) *InitiationService {
	return &InitiationService{txns: txns, refs: refs, gateway: gateway, limits: limits, feeBps: feeBps}
}

func (s *InitiationService) InitiatePayment(ctx context.Context, in InitiateInput) (InitiateOutput, error) {
	if in.Type != models.TxnDonation {
		in.Type = models.TxnPayment
	}
	fb, err := payments.ComputeFee(in.Amount, s.feeBps, s.limits)
	if err != nil {
		return InitiateOutput{}, err
	}

	var txn models.Transaction
	for attempt := 1; ; attempt++ {
		txn, err = s.txns.CreatePending(ctx, models.Transaction{
			ExternalReference: s.refs.Generate(in.Type),
			Type:              in.Type,
			GrossAmount:       fb.Gross,
			PlatformFeeAmount: fb.Fee,
			NetAmount:         fb.Net,
			Currency:          in.Currency,
			UserID:            in.UserID,
			DonorName:         in.DonorName,
			Message:           in.Message,
			Anonymous:         in.Anonymous,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrReferenceExists) || attempt >= referenceRetries {
			return InitiateOutput{}, fmt.Errorf("create pending transaction: %w", err)
		}
		slog.Warn("reference collision, regenerating", "attempt", attempt)
	}

	resp, err := s.gateway.InitializeTransaction(ctx, provider.InitializeRequest{
		Reference: txn.ExternalReference,
		Amount:    txn.GrossAmount,
		Currency:  txn.Currency,
		Email:     in.Email,
	})
	if err != nil {
		// Row stays pending; it will simply never receive a webhook and is
		// visible to the archival process as an abandoned initiation.
		return InitiateOutput{}, fmt.Errorf("initialize with provider: %w", err)
	}

	metrics.PaymentsInitiated.WithLabelValues(string(txn.Type)).Inc()
	slog.Info("payment initiated", "reference", txn.ExternalReference, "type", txn.Type, "gross", txn.GrossAmount)

	return InitiateOutput{
		Reference:   txn.ExternalReference,
		CheckoutURL: resp.CheckoutURL,
		Fee:         fb.Fee,
		Net:         fb.Net,
		Transaction: txn,
	}, nil
}

// Lookup serves the client app's status poll.
func (s *InitiationService) Lookup(ctx context.Context, reference string) (models.Transaction, error) {
	return s.txns.GetByReference(ctx, reference)
}
