package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smehubhq/payments-service/internal/api/httpx"
	"github.com/smehubhq/payments-service/internal/api/validate"
	"github.com/smehubhq/payments-service/internal/middleware"
	"github.com/smehubhq/payments-service/internal/models"
	"github.com/smehubhq/payments-service/internal/services"
)

type PaymentsHandler struct {
	svc *services.InitiationService
}

func NewPaymentsHandler(svc *services.InitiationService) *PaymentsHandler {
	return &PaymentsHandler{svc: svc}
}

type initiateRequest struct {
	Amount    int64  `json:"amount"` // minor units
	Currency  string `json:"currency"`
	Type      string `json:"type"` // payment|donation
	Email     string `json:"email"`
	DonorName string `json:"donor_name"`
	Message   string `json:"message"`
	Anonymous bool   `json:"anonymous"`
}

func (h *PaymentsHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}

	var errs validate.Errs
	if e := validate.Required("currency", req.Currency); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.MinInt("amount", req.Amount, 1); e != nil {
		errs = append(errs, *e)
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", errs.Error(), errs)
		return
	}

	in := services.InitiateInput{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Type:      models.TransactionType(req.Type),
		Email:     req.Email,
		Anonymous: req.Anonymous,
	}
	if uid, ok := middleware.UserID(r.Context()); ok {
		in.UserID = &uid
	}
	if req.DonorName != "" {
		in.DonorName = &req.DonorName
	}
	if req.Message != "" {
		in.Message = &req.Message
	}

	out, err := h.svc.InitiatePayment(r.Context(), in)
	if errors.Is(err, models.ErrInvalidAmount) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "initiation_failed", "could not initiate payment", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{
		"reference":    out.Reference,
		"checkout_url": out.CheckoutURL,
		"fee":          out.Fee,
		"net":          out.Net,
	})
}

func (h *PaymentsHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	txn, err := h.svc.Lookup(r.Context(), ref)
	if errors.Is(err, models.ErrTransactionNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown reference", nil)
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txn)
}
