package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	apphttp "github.com/harborfin/compliance-middleware/pkg/app/http"
	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/gate"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service *Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the investment gate on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/gate", func(r chi.Router) {
		r.Post("/venues", apphttp.HandleError(h.addVenue))
		r.Put("/venues/{venue}", apphttp.HandleError(h.updateVenue))
		r.Delete("/venues/{venue}", apphttp.HandleError(h.removeVenue))
		r.Post("/overrides", apphttp.HandleError(h.addOverride))
		r.Delete("/overrides/{investor}", apphttp.HandleError(h.removeOverride))
		r.Post("/can-invest", apphttp.HandleError(h.canInvest))
		r.Post("/investments", apphttp.HandleError(h.recordInvestment))
		r.Post("/withdrawals", apphttp.HandleError(h.recordWithdrawal))
		r.Get("/positions/{venue}/{investor}", apphttp.HandleError(h.position))
	})
}

type venueRequest struct {
	Caller             string   `json:"caller"`
	Venue              string   `json:"venue"`
	RequiredBadgeTypes []uint32 `json:"required_badge_types"`
	MinInvestment      string   `json:"min_investment"`
	MaxInvestment      string   `json:"max_investment"`
}

type overrideRequest struct {
	Caller   string `json:"caller"`
	Investor string `json:"investor"`
}

type canInvestRequest struct {
	Investor string `json:"investor"`
	Venue    string `json:"venue"`
	Amount   string `json:"amount"`
}

type positionUpdateRequest struct {
	Caller   string `json:"caller"`
	Venue    string `json:"venue"`
	Investor string `json:"investor"`
	Amount   string `json:"amount"`
}

func (h *HTTP) addVenue(w http.ResponseWriter, r *http.Request) error {
	var req venueRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	v, err := h.venue(req, req.Venue)
	if err != nil {
		return err
	}

	if err := h.service.AddVenue(caller, v); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) updateVenue(w http.ResponseWriter, r *http.Request) error {
	var req venueRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	v, err := h.venue(req, chi.URLParam(r, "venue"))
	if err != nil {
		return err
	}

	if err := h.service.UpdateVenue(caller, v); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) removeVenue(w http.ResponseWriter, r *http.Request) error {
	venueAddr, err := h.address(chi.URLParam(r, "venue"))
	if err != nil {
		return err
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.RemoveVenue(caller, venueAddr); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) addOverride(w http.ResponseWriter, r *http.Request) error {
	var req overrideRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	investor, err := h.address(req.Investor)
	if err != nil {
		return err
	}

	if err := h.service.AddOverride(caller, investor); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) removeOverride(w http.ResponseWriter, r *http.Request) error {
	investor, err := h.address(chi.URLParam(r, "investor"))
	if err != nil {
		return err
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.RemoveOverride(caller, investor); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) canInvest(w http.ResponseWriter, r *http.Request) error {
	var req canInvestRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	investor, err := h.address(req.Investor)
	if err != nil {
		return err
	}
	venueAddr, err := h.address(req.Venue)
	if err != nil {
		return err
	}
	amount, err := h.amount(req.Amount)
	if err != nil {
		return err
	}

	allowed, reason, err := h.service.CanInvest(r.Context(), investor, venueAddr, amount)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"allowed": allowed,
		"reason":  reason,
	})
	return nil
}

func (h *HTTP) recordInvestment(w http.ResponseWriter, r *http.Request) error {
	return h.recordPosition(w, r, h.service.RecordInvestment)
}

func (h *HTTP) recordWithdrawal(w http.ResponseWriter, r *http.Request) error {
	return h.recordPosition(w, r, h.service.RecordWithdrawal)
}

func (h *HTTP) recordPosition(w http.ResponseWriter, r *http.Request,
	record func(ctx context.Context, caller, venue, investor common.Address, amount decimal.Decimal) error) error {
	var req positionUpdateRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	venueAddr, err := h.address(req.Venue)
	if err != nil {
		return err
	}
	investor, err := h.address(req.Investor)
	if err != nil {
		return err
	}
	amount, err := h.amount(req.Amount)
	if err != nil {
		return err
	}

	if err := record(r.Context(), caller, venueAddr, investor, amount); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) position(w http.ResponseWriter, r *http.Request) error {
	venueAddr, err := h.address(chi.URLParam(r, "venue"))
	if err != nil {
		return err
	}
	investor, err := h.address(chi.URLParam(r, "investor"))
	if err != nil {
		return err
	}

	total, err := h.service.Position(r.Context(), venueAddr, investor)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{"position": total.String()})
	return nil
}

func (h *HTTP) venue(req venueRequest, addr string) (*gate.Venue, error) {
	venueAddr, err := h.address(addr)
	if err != nil {
		return nil, err
	}
	min, err := h.amount(req.MinInvestment)
	if err != nil {
		return nil, err
	}
	max, err := h.amount(req.MaxInvestment)
	if err != nil {
		return nil, err
	}
	types := make([]credential.Type, len(req.RequiredBadgeTypes))
	for i, t := range req.RequiredBadgeTypes {
		types[i] = credential.Type(t)
	}
	return &gate.Venue{
		Address:            venueAddr,
		RequiredBadgeTypes: types,
		MinInvestment:      min,
		MaxInvestment:      max,
	}, nil
}

func (h *HTTP) amount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, apperrors.BadRequestError(err, "invalid amount")
	}
	return d, nil
}

func (h *HTTP) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func (h *HTTP) address(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, apperrors.BadRequestError(nil, "invalid address: "+s)
	}
	return common.HexToAddress(s), nil
}
