package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"NanoTokenGate/internal/services"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Orders *services.OrderService
}

func NewHandler(orders *services.OrderService) *Handler {
	return &Handler{Orders: orders}
}

type requestPaymentRequest struct {
	TokenAmount int64  `json:"token_amount"`
	TokenKey    string `json:"token_key,omitempty"`
}

type requestPaymentResponse struct {
	Address       string  `json:"address"`
	TokenKey      string  `json:"token_key"`
	PaymentAmount float64 `json:"payment_amount"`
}

func (h *Handler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	var req requestPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	payment, err := h.Orders.RequestPayment(r.Context(), req.TokenAmount, req.TokenKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrOrderInProgress):
			writeError(w, http.StatusConflict, "This order is already processing or was interrupted. Please try again later or request a new key.")
		default:
			writeError(w, http.StatusInternalServerError, "request payment failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, requestPaymentResponse{
		Address:       payment.Address,
		TokenKey:      payment.TokenKey,
		PaymentAmount: payment.PaymentAmount,
	})
}

type orderStatusResponse struct {
	TokenKey      string `json:"token_key"`
	TokensOrdered int64  `json:"tokens_ordered,omitempty"`
	TokensTotal   int64  `json:"tokens_total,omitempty"`
	OrderTimeLeft int64  `json:"order_time_left,omitempty"`
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	tokenKey := chi.URLParam(r, "tokenKey")
	status, err := h.Orders.CheckOrderStatus(r.Context(), tokenKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found for key: "+tokenKey)
		case errors.Is(err, services.ErrOrderTimedOut):
			writeError(w, http.StatusGone, "order timed out for key: "+tokenKey)
		default:
			writeError(w, http.StatusInternalServerError, "order status failed")
		}
		return
	}

	resp := orderStatusResponse{TokenKey: tokenKey}
	if status.Completed {
		resp.TokensOrdered = status.TokensOrdered
		resp.TokensTotal = status.TokensTotal
	} else {
		resp.OrderTimeLeft = status.TimeLeft
	}
	writeJSON(w, http.StatusOK, resp)
}

type tokenBalanceResponse struct {
	TokensTotal int64  `json:"tokens_total"`
	Status      string `json:"status"`
}

func (h *Handler) TokenBalance(w http.ResponseWriter, r *http.Request) {
	tokenKey := chi.URLParam(r, "tokenKey")
	balance, err := h.Orders.CheckTokenBalance(r.Context(), tokenKey)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "tokens not found for that key")
			return
		}
		writeError(w, http.StatusInternalServerError, "token balance failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenBalanceResponse{
		TokensTotal: balance.TokensTotal,
		Status:      balance.StatusText,
	})
}

type cancelOrderResponse struct {
	PrivKey string `json:"priv_key"`
	Status  string `json:"status"`
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	tokenKey := chi.URLParam(r, "tokenKey")
	result, err := h.Orders.CancelOrder(r.Context(), tokenKey)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "cancel order failed")
		return
	}
	writeJSON(w, http.StatusOK, cancelOrderResponse{
		PrivKey: result.PrivKey,
		Status:  result.StatusText,
	})
}

func (h *Handler) TokenPrice(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Orders.TokenPrice(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token price failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type repairRequest struct {
	Address string `json:"address"`
}

func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}
	if err := h.Orders.Repair(r.Context(), req.Address); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "no order for that address")
			return
		}
		writeError(w, http.StatusInternalServerError, "repair failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
