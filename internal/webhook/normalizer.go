package webhook

import (
	"encoding/json"

	"github.com/smehubhq/payments-service/internal/models"
	"github.com/smehubhq/payments-service/internal/payments"
)

// NormalizedEvent is the structured result of mapping a provider payload onto
// the canonical vocabulary. Normalize never fails; malformed input yields an
// unknown event with an empty reference and the caller decides what to do.
type NormalizedEvent struct {
	Event          models.CanonicalEvent
	TargetStatus   models.TransactionStatus // set only for terminal events
	Reference      string                   // empty when absent or malformed
	ProviderTxnID  string
	ReportedAmount *int64 // minor units, nil when the provider omitted it
}

type mapping struct {
	event  models.CanonicalEvent
	target models.TransactionStatus
}

// eventTable is the exhaustive provider-vocabulary map. Every event string the
// gateway emits must appear here; anything absent normalizes to unknown.
// Adding a provider event is a row here, not a new code path.
var eventTable = map[string]mapping{
	"charge.success":    {models.EventSucceeded, models.TxnCompleted},
	"transfer.success":  {models.EventSucceeded, models.TxnCompleted},
	"charge.failed":     {models.EventFailed, models.TxnFailed},
	"transfer.failed":   {models.EventFailed, models.TxnFailed},
	"charge.cancelled":  {models.EventFailed, models.TxnCancelled},
	"payment.cancelled": {models.EventFailed, models.TxnCancelled},
	"charge.pending":    {models.EventPending, ""},
	"payment.pending":   {models.EventPending, ""},

	// bare status strings some gateway versions put in data.status
	"success":   {models.EventSucceeded, models.TxnCompleted},
	"failed":    {models.EventFailed, models.TxnFailed},
	"abandoned": {models.EventFailed, models.TxnCancelled},
	"pending":   {models.EventPending, ""},
}

type providerPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string      `json:"reference"`
		ID        json.Number `json:"id"`
		Amount    *int64      `json:"amount"`
		Status    string      `json:"status"`
	} `json:"data"`
}

// Normalize maps a raw webhook body onto the canonical event vocabulary and
// extracts the fields the reconciliation engine needs.
func Normalize(raw []byte) NormalizedEvent {
	var p providerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return NormalizedEvent{Event: models.EventUnknown}
	}

	key := p.Event
	if key == "" {
		key = p.Data.Status
	}
	m, found := eventTable[key]
	if !found {
		m = mapping{event: models.EventUnknown}
	}

	out := NormalizedEvent{
		Event:          m.event,
		TargetStatus:   m.target,
		ProviderTxnID:  p.Data.ID.String(),
		ReportedAmount: p.Data.Amount,
	}
	if out.ProviderTxnID == "" || out.ProviderTxnID == "0" {
		out.ProviderTxnID = ""
	}
	if _, ok := payments.ParseReference(p.Data.Reference); ok {
		out.Reference = p.Data.Reference
	}
	return out
}
