package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	apphttp "github.com/harborfin/compliance-middleware/pkg/app/http"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service *Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the trust directory on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/trusted-issuers", func(r chi.Router) {
		r.Post("/", apphttp.HandleError(h.addIssuer))
		r.Get("/", apphttp.HandleError(h.listIssuers))
		r.Put("/{issuer}", apphttp.HandleError(h.updateIssuer))
		r.Delete("/{issuer}", apphttp.HandleError(h.removeIssuer))
	})
	r.Route("/claim-topics", func(r chi.Router) {
		r.Post("/", apphttp.HandleError(h.addTopic))
		r.Get("/", apphttp.HandleError(h.listTopics))
		r.Delete("/{topic}", apphttp.HandleError(h.removeTopic))
	})
}

type issuerRequest struct {
	Caller string   `json:"caller"`
	Issuer string   `json:"issuer"`
	Topics []uint64 `json:"topics"`
}

type issuerResponse struct {
	Issuer string   `json:"issuer"`
	Topics []uint64 `json:"topics"`
}

type topicRequest struct {
	Caller string `json:"caller"`
	Topic  uint64 `json:"topic"`
}

func (h *HTTP) addIssuer(w http.ResponseWriter, r *http.Request) error {
	var req issuerRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	issuer, err := h.address(req.Issuer)
	if err != nil {
		return err
	}

	if err := h.service.AddTrustedIssuer(r.Context(), caller, issuer, req.Topics); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) updateIssuer(w http.ResponseWriter, r *http.Request) error {
	issuer, err := h.address(chi.URLParam(r, "issuer"))
	if err != nil {
		return err
	}
	var req issuerRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.UpdateIssuerTopics(r.Context(), caller, issuer, req.Topics); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) removeIssuer(w http.ResponseWriter, r *http.Request) error {
	issuer, err := h.address(chi.URLParam(r, "issuer"))
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

	if err := h.service.RemoveTrustedIssuer(r.Context(), caller, issuer); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) listIssuers(w http.ResponseWriter, r *http.Request) error {
	entries, err := h.service.TrustedIssuers(r.Context())
	if err != nil {
		return err
	}
	resp := make([]issuerResponse, len(entries))
	for i, e := range entries {
		resp[i] = issuerResponse{Issuer: e.Issuer.Hex(), Topics: e.Topics}
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) addTopic(w http.ResponseWriter, r *http.Request) error {
	var req topicRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.AddClaimTopic(r.Context(), caller, req.Topic); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) removeTopic(w http.ResponseWriter, r *http.Request) error {
	topic, err := strconv.ParseUint(chi.URLParam(r, "topic"), 10, 64)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid topic")
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

	if err := h.service.RemoveClaimTopic(r.Context(), caller, topic); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) listTopics(w http.ResponseWriter, r *http.Request) error {
	topics, err := h.service.RequiredTopics(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string][]uint64{"topics": topics})
	return nil
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
