package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smehubhq/payments-service/internal/models"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnColumns = `id, external_reference, type, gross_amount, platform_fee_amount, net_amount,
       currency, status, provider_txn_id, raw_payload, user_id, donor_name, message, anonymous,
       created_at, updated_at`

func (r *transactionsRepo) CreatePending(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	const q = `
INSERT INTO transactions (
  id, external_reference, type, gross_amount, platform_fee_amount, net_amount,
  currency, status, user_id, donor_name, message, anonymous
) VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',$8,$9,$10,$11)
RETURNING ` + txnColumns
	err := r.pool.QueryRow(ctx, q,
		tx.ID, tx.ExternalReference, tx.Type, tx.GrossAmount, tx.PlatformFeeAmount, tx.NetAmount,
		tx.Currency, tx.UserID, tx.DonorName, tx.Message, tx.Anonymous,
	).Scan(scanTargets(&tx)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Transaction{}, models.ErrReferenceExists
		}
		return models.Transaction{}, fmt.Errorf("create pending transaction: %w", err)
	}
	return tx, nil
}

func (r *transactionsRepo) GetByReference(ctx context.Context, ref string) (models.Transaction, error) {
	var tx models.Transaction
	err := r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE external_reference=$1`, ref,
	).Scan(scanTargets(&tx)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction by reference: %w", err)
	}
	return tx, nil
}

// ApplyTerminalTransition is a single conditional write: the WHERE clause pins
// the row to pending, so under concurrent delivery exactly one caller observes
// RowsAffected()==1. provider_txn_id is only filled when still null.
func (r *transactionsRepo) ApplyTerminalTransition(ctx context.Context, ref string, to models.TransactionStatus, providerTxnID string, rawPayload []byte) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
UPDATE transactions
   SET status = $2,
       provider_txn_id = COALESCE(provider_txn_id, NULLIF($3, '')),
       raw_payload = $4,
       updated_at = now()
 WHERE external_reference = $1
   AND status = 'pending'`,
		ref, to, providerTxnID, rawPayload,
	)
	if err != nil {
		return false, fmt.Errorf("apply terminal transition: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func scanTargets(tx *models.Transaction) []any {
	return []any{
		&tx.ID, &tx.ExternalReference, &tx.Type, &tx.GrossAmount, &tx.PlatformFeeAmount, &tx.NetAmount,
		&tx.Currency, &tx.Status, &tx.ProviderTxnID, &tx.RawPayload, &tx.UserID, &tx.DonorName, &tx.Message, &tx.Anonymous,
		&tx.CreatedAt, &tx.UpdatedAt,
	}
}
