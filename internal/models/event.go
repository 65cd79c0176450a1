package models

// CanonicalEvent is the four-way bucket every provider event string is
// normalized into before the reconciliation engine looks at it.
type CanonicalEvent string

const (
	EventSucceeded CanonicalEvent = "succeeded"
	EventFailed    CanonicalEvent = "failed"
	EventPending   CanonicalEvent = "pending"
	EventUnknown   CanonicalEvent = "unknown"
)
