// Package handler exposes the output views to the reporting layer over a
// read-only HTTP API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"riskwatch/internal/risk"
	"riskwatch/internal/temporal"
	"riskwatch/internal/views/models"
	id "riskwatch/pkg/domain"
	dErrors "riskwatch/pkg/domain-errors"
	"riskwatch/pkg/platform/httputil"
	"riskwatch/pkg/requestcontext"
)

const maxPageSize = 1000

// Reader is the subset of the view store the API reads from.
type Reader interface {
	CurrentAddress(ctx context.Context, cid id.CustomerID) (models.AddressRow, error)
	AddressHistory(ctx context.Context, cid id.CustomerID) ([]models.AddressRow, error)
	RiskProfile(ctx context.Context, cid id.CustomerID) (models.RiskProfile, error)
	ListRiskProfiles(ctx context.Context, filter models.Filter) ([]models.RiskProfile, error)
	LatestCycle(ctx context.Context) (models.CycleReport, error)
}

// Handler wires view endpoints to a Reader.
type Handler struct {
	reader Reader
	logger *slog.Logger
}

// New constructs a view handler.
func New(reader Reader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{reader: reader, logger: logger}
}

// Register mounts the view endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/customers/{customerID}/address", h.HandleCurrentAddress)
	r.Get("/v1/customers/{customerID}/address/history", h.HandleAddressHistory)
	r.Get("/v1/customers/{customerID}/risk", h.HandleRiskProfile)
	r.Get("/v1/risk", h.HandleListRiskProfiles)
	r.Get("/v1/cycles/latest", h.HandleLatestCycle)
}

// HandleCurrentAddress handles GET /v1/customers/{id}/address. With
// ?at=YYYY-MM-DD it answers the address valid on that day instead.
func (h *Handler) HandleCurrentAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cid, ok := h.customerID(w, r)
	if !ok {
		return
	}

	if at := r.URL.Query().Get("at"); at != "" {
		day, err := id.ParseDate(at)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at must be a YYYY-MM-DD date"))
			return
		}
		history, err := h.reader.AddressHistory(ctx, cid)
		if err != nil {
			h.fail(w, r, "address history lookup failed", err)
			return
		}
		row, found := temporal.At(history, day)
		if !found {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no address valid on that date"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, row)
		return
	}

	row, err := h.reader.CurrentAddress(ctx, cid)
	if err != nil {
		h.fail(w, r, "current address lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

// HandleAddressHistory handles GET /v1/customers/{id}/address/history.
func (h *Handler) HandleAddressHistory(w http.ResponseWriter, r *http.Request) {
	cid, ok := h.customerID(w, r)
	if !ok {
		return
	}
	rows, err := h.reader.AddressHistory(r.Context(), cid)
	if err != nil {
		h.fail(w, r, "address history lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{CustomerID: cid, Intervals: rows})
}

// HandleRiskProfile handles GET /v1/customers/{id}/risk.
func (h *Handler) HandleRiskProfile(w http.ResponseWriter, r *http.Request) {
	cid, ok := h.customerID(w, r)
	if !ok {
		return
	}
	profile, err := h.reader.RiskProfile(r.Context(), cid)
	if err != nil {
		h.fail(w, r, "risk profile lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleListRiskProfiles handles GET /v1/risk?rating=&review=&limit=&offset=.
func (h *Handler) HandleListRiskProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	profiles, err := h.reader.ListRiskProfiles(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "risk profile listing failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Profiles: profiles, Count: len(profiles)})
}

// HandleLatestCycle handles GET /v1/cycles/latest.
func (h *Handler) HandleLatestCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.reader.LatestCycle(r.Context())
	if err != nil {
		h.fail(w, r, "latest cycle lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (id.CustomerID, bool) {
	cid, err := id.ParseCustomerID(chi.URLParam(r, "customerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return cid, true
}

// fail logs anything that is not a plain miss and writes the error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httputil.StatusFor(codeOf(err)) >= http.StatusInternalServerError {
		ctx := r.Context()
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"subject", requestcontext.Subject(ctx),
			"path", r.URL.Path,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var f models.Filter

	if raw := q.Get("rating"); raw != "" {
		rating, ok := risk.ParseRating(raw)
		if !ok {
			return f, dErrors.New(dErrors.CodeBadRequest, "unknown rating")
		}
		f.Rating = rating
	}
	if raw := q.Get("review"); raw != "" {
		review, err := strconv.ParseBool(raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "review must be true or false")
		}
		f.ReviewOnly = review
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit"), 100); err != nil || f.Limit < 1 || f.Limit > maxPageSize {
		return f, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 1000")
	}
	if f.Offset, err = intParam(q.Get("offset"), 0); err != nil || f.Offset < 0 {
		return f, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
	}
	return f, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
