package repository

import (
	"context"

	"github.com/smehubhq/payments-service/internal/models"
)

type Transactions interface {
	// CreatePending inserts a new row in status pending. A reference collision
	// returns models.ErrReferenceExists so the caller can regenerate.
	CreatePending(ctx context.Context, tx models.Transaction) (models.Transaction, error)

	GetByReference(ctx context.Context, ref string) (models.Transaction, error)

	// ApplyTerminalTransition moves a row from pending to a terminal status in
	// a single conditional UPDATE (WHERE status='pending'). It reports whether
	// the row was actually transitioned; false means the row was no longer
	// pending at write time. This is the serialization point that makes
	// concurrent webhook delivery safe — implementations must not use a
	// read-then-write pair.
	ApplyTerminalTransition(ctx context.Context, ref string, to models.TransactionStatus, providerTxnID string, rawPayload []byte) (bool, error)
}

type WebhookAudits interface {
	// Create appends one audit row. Never updates, never deletes.
	Create(ctx context.Context, a models.WebhookAudit) error
}
