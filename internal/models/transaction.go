package models

import (
	"errors"
	"time"
)

type TransactionType string

const (
	TxnPayment  TransactionType = "payment"
	TxnDonation TransactionType = "donation"
)

// ReferencePrefix is the tag embedded at the front of the external reference.
func (t TransactionType) ReferencePrefix() string {
	if t == TxnDonation {
		return "DON"
	}
	return "PAY"
}

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
	TxnCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether the status permits no further transition.
func (s TransactionStatus) Terminal() bool {
	return s == TxnCompleted || s == TxnFailed || s == TxnCancelled
}

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrReferenceExists     = errors.New("external reference already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Transaction is the ledger row. Amounts are integer minor units.
// Everything except status, provider_txn_id, raw_payload and updated_at is
// immutable after creation.
type Transaction struct {
	ID                string            `json:"id"`
	ExternalReference string            `json:"external_reference"`
	Type              TransactionType   `json:"type"`
	GrossAmount       int64             `json:"gross_amount"`
	PlatformFeeAmount int64             `json:"platform_fee_amount"`
	NetAmount         int64             `json:"net_amount"`
	Currency          string            `json:"currency"`
	Status            TransactionStatus `json:"status"`
	ProviderTxnID     *string           `json:"provider_txn_id,omitempty"`
	RawPayload        []byte            `json:"-"`
	UserID            *string           `json:"user_id,omitempty"`
	DonorName         *string           `json:"donor_name,omitempty"`
	Message           *string           `json:"message,omitempty"`
	Anonymous         bool              `json:"anonymous"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
