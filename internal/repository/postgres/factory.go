package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/smehubhq/payments-service/internal/repository"
)

type Repositories struct {
	Transactions  repo.Transactions
	WebhookAudits repo.WebhookAudits
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Transactions:  &transactionsRepo{pool},
		WebhookAudits: &webhookAuditsRepo{pool},
	}
}
