package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/smehubhq/payments-service/internal/api/httpx"
	"github.com/smehubhq/payments-service/internal/services"
)

// maxWebhookBody caps the raw body read; the gateway's payloads are tiny.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	svc             *services.ReconciliationService
	signatureHeader string
}

func NewWebhookHandler(svc *services.ReconciliationService, signatureHeader string) *WebhookHandler {
	return &WebhookHandler{svc: svc, signatureHeader: signatureHeader}
}

// ServePaymentWebhook reads the raw body (the signature is computed over the
// exact bytes, never a re-serialized object) and hands it to the engine.
//
// Response policy: 401 failed authentication, 200 for every absorbed business
// outcome, 503 only when the ledger write kept failing — the one case where a
// provider redelivery is actually useful.
func (h *WebhookHandler) ServePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
		return
	}

	result, err := h.svc.ProcessWebhook(r.Context(), rawBody, r.Header.Get(h.signatureHeader))
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature verification failed", nil)
		return
	case errors.Is(err, services.ErrStoreUnavailable):
		slog.Error("webhook processing failed on store", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary failure, please retry", nil)
		return
	case err != nil:
		slog.Error("webhook processing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": string(result.Outcome)})
}
