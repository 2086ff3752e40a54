package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
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

// RegisterRoutes registers HTTP endpoints for claim issuers on the given
// chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/issuers/{issuer}", func(r chi.Router) {
		r.Post("/revocations", apphttp.HandleError(h.revokeBySignature))
		r.Post("/claims/revoke", apphttp.HandleError(h.revokeClaim))
		r.Post("/claims/validate", apphttp.HandleError(h.validateClaim))
	})
}

type revokeSignatureRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature"`
}

type revokeClaimRequest struct {
	Caller  string `json:"caller"`
	Holder  string `json:"holder"`
	ClaimID string `json:"claim_id"`
}

type validateClaimRequest struct {
	Subject   string `json:"subject"`
	Topic     uint64 `json:"topic"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
}

func (h *HTTP) revokeBySignature(w http.ResponseWriter, r *http.Request) error {
	issuerAddr, err := h.address(chi.URLParam(r, "issuer"))
	if err != nil {
		return err
	}
	var req revokeSignatureRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	signature, err := h.hexBytes(req.Signature)
	if err != nil {
		return err
	}

	if err := h.service.RevokeClaimBySignature(r.Context(), issuerAddr, caller, signature); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) revokeClaim(w http.ResponseWriter, r *http.Request) error {
	issuerAddr, err := h.address(chi.URLParam(r, "issuer"))
	if err != nil {
		return err
	}
	var req revokeClaimRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	holder, err := h.address(req.Holder)
	if err != nil {
		return err
	}

	if err := h.service.RevokeClaim(r.Context(), issuerAddr, caller, holder, common.HexToHash(req.ClaimID)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) validateClaim(w http.ResponseWriter, r *http.Request) error {
	issuerAddr, err := h.address(chi.URLParam(r, "issuer"))
	if err != nil {
		return err
	}
	var req validateClaimRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	subject, err := h.address(req.Subject)
	if err != nil {
		return err
	}
	signature, err := h.hexBytes(req.Signature)
	if err != nil {
		return err
	}
	data, err := h.hexBytes(req.Data)
	if err != nil {
		return err
	}

	valid, err := h.service.IsClaimValid(r.Context(), issuerAddr, subject, req.Topic, signature, data)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
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

func (h *HTTP) hexBytes(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid hex payload")
	}
	return b, nil
}
