package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smehubhq/payments-service/internal/models"
)

type webhookAuditsRepo struct{ pool *pgxpool.Pool }

func (r *webhookAuditsRepo) Create(ctx context.Context, a models.WebhookAudit) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_audits(id, signature_valid, outcome, transaction_id, external_reference, raw_payload)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		a.ID, a.SignatureValid, a.Outcome, a.TransactionID, a.ExternalReference, a.RawPayload,
	)
	return err
}
