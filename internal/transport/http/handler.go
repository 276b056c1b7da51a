package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paystreak/internal/model"
	"paystreak/internal/repository"
	"paystreak/internal/service"
)

type Handler struct {
	svc service.RewardService
}

func NewHandler(svc service.RewardService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/bills/pay", h.PayBill)
	mux.HandleFunc("GET /api/users/{userId}/bills", h.GetUserBills)
	mux.HandleFunc("GET /api/users/{userId}/bills/recent", h.GetRecentBills)
	mux.HandleFunc("GET /api/users/{userId}/rewards", h.GetUserRewards)
	mux.HandleFunc("GET /api/users/{userId}/eligibility", h.CheckEligibility)
	mux.HandleFunc("POST /api/users/{userId}/rewards/generate", h.GenerateReward)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"service":   "paystreak",
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	var req model.PayBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	res, err := h.svc.RecordPayment(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidRequest):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrBillAlreadyPaid):
			h.respondError(w, http.StatusConflict, "bill already paid")
		default:
			h.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "Bill payment processed successfully",
		"bill":           res.Bill,
		"eventPublished": res.EventPublished,
	})
}

func (h *Handler) GetUserBills(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	limit := queryInt(r, "limit", 10)
	skip := queryInt(r, "skip", 0)

	page, err := h.svc.ListBills(r.Context(), userID, limit, skip)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}

func (h *Handler) GetRecentBills(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RecentBills(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) GetUserRewards(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	rewards, err := h.svc.GetUserRewards(r.Context(), userID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch rewards")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":  userID,
		"rewards": rewards,
	})
}

func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CheckEligibility(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to check eligibility")
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) GenerateReward(w http.ResponseWriter, r *http.Request) {
	reward, err := h.svc.GenerateReward(r.Context(), r.PathValue("userId"))
	if err != nil {
		if errors.Is(err, service.ErrInsufficientHistory) {
			h.respondError(w, http.StatusBadRequest, "Need 3 bills to generate reward")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to generate reward")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Reward generated successfully",
		"reward":  reward,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
