package models

import "time"

// WebhookOutcome tags what the reconciliation engine did with an inbound call.
type WebhookOutcome string

const (
	OutcomeApplied           WebhookOutcome = "applied"
	OutcomeDuplicate         WebhookOutcome = "duplicate"
	OutcomeConflict          WebhookOutcome = "conflicting_terminal_state"
	OutcomeAmountMismatch    WebhookOutcome = "amount_mismatch"
	OutcomeReferenceNotFound WebhookOutcome = "reference_not_found"
	OutcomeUnprocessable     WebhookOutcome = "unprocessable"
	OutcomeInvalidSignature  WebhookOutcome = "invalid_signature"
	OutcomeStillPending      WebhookOutcome = "still_pending"
	OutcomeStoreFailure      WebhookOutcome = "transient_store_failure"
)

// WebhookAudit is an append-only record of one inbound webhook call,
// written regardless of whether the call mutated anything.
type WebhookAudit struct {
	ID                string         `json:"id"`
	SignatureValid    bool           `json:"signature_valid"`
	Outcome           WebhookOutcome `json:"outcome"`
	TransactionID     *string        `json:"transaction_id,omitempty"`
	ExternalReference *string        `json:"external_reference,omitempty"`
	RawPayload        []byte         `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
}
