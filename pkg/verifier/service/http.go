package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	apphttp "github.com/harborfin/compliance-middleware/pkg/app/http"
	"github.com/harborfin/compliance-middleware/pkg/credential"
	"github.com/harborfin/compliance-middleware/pkg/verifier"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service *Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the proof verifier on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/credentials", func(r chi.Router) {
		r.Post("/verify", apphttp.HandleError(h.verify))
		r.Get("/{contentHash}", apphttp.HandleError(h.get))
		r.Get("/{contentHash}/valid", apphttp.HandleError(h.isValid))
		r.Post("/{contentHash}/revoke", apphttp.HandleError(h.revoke))
		r.Get("/subjects/{subject}", apphttp.HandleError(h.subjectCredentials))
	})
}

type verifyRequest struct {
	PublicOutputs string `json:"public_outputs"`
	Proof         string `json:"proof"`
	// VKey substitutes the registered program verification key when set.
	VKey string `json:"vkey,omitempty"`
}

type credentialResponse struct {
	ContentHash    string `json:"content_hash"`
	Subject        string `json:"subject"`
	CredentialType uint32 `json:"credential_type"`
	TypeName       string `json:"type_name"`
	IssuedAt       uint64 `json:"issued_at"`
	ExpiresAt      uint64 `json:"expires_at"`
	VerifiedAt     int64  `json:"verified_at"`
	Valid          bool   `json:"valid"`
}

func (h *HTTP) verify(w http.ResponseWriter, r *http.Request) error {
	var req verifyRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	outputs, err := h.hexBytes(req.PublicOutputs)
	if err != nil {
		return err
	}
	proof, err := h.hexBytes(req.Proof)
	if err != nil {
		return err
	}

	var contentHash common.Hash
	if req.VKey != "" {
		vkey, err := h.hexBytes(req.VKey)
		if err != nil {
			return err
		}
		contentHash, err = h.service.VerifyCredentialWithKey(r.Context(), vkey, outputs, proof)
		if err != nil {
			return err
		}
	} else {
		contentHash, err = h.service.VerifyCredential(r.Context(), outputs, proof)
		if err != nil {
			return err
		}
	}

	apphttp.WriteJSON(w, http.StatusCreated, map[string]string{"content_hash": contentHash.Hex()})
	return nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.service.GetCredential(r.Context(), common.HexToHash(chi.URLParam(r, "contentHash")))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, toCredentialResponse(rec))
	return nil
}

func (h *HTTP) isValid(w http.ResponseWriter, r *http.Request) error {
	valid, err := h.service.IsCredentialValid(r.Context(), common.HexToHash(chi.URLParam(r, "contentHash")))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
	return nil
}

func (h *HTTP) revoke(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := h.decode(r, &req); err != nil {
		return err
	}
	if !common.IsHexAddress(req.Caller) {
		return apperrors.BadRequestError(nil, "invalid caller address")
	}

	if err := h.service.RevokeCredential(r.Context(), common.HexToAddress(req.Caller), common.HexToHash(chi.URLParam(r, "contentHash"))); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) subjectCredentials(w http.ResponseWriter, r *http.Request) error {
	subject := chi.URLParam(r, "subject")
	if !common.IsHexAddress(subject) {
		return apperrors.BadRequestError(nil, "invalid subject address")
	}

	hashes, err := h.service.SubjectCredentials(r.Context(), common.HexToAddress(subject))
	if err != nil {
		return err
	}

	// Optional per-type filter.
	if typeParam := r.URL.Query().Get("type"); typeParam != "" {
		raw, err := strconv.ParseUint(typeParam, 10, 32)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid credential type")
		}
		has, err := h.service.HasValidCredentialOfType(r.Context(), common.HexToAddress(subject), credential.Type(raw))
		if err != nil {
			return err
		}
		apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"has_valid_credential": has})
		return nil
	}

	out := make([]string, len(hashes))
	for i, hash := range hashes {
		out[i] = hash.Hex()
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string][]string{"content_hashes": out})
	return nil
}

func toCredentialResponse(rec *verifier.Record) *credentialResponse {
	return &credentialResponse{
		ContentHash:    rec.ContentHash.Hex(),
		Subject:        rec.Subject.Hex(),
		CredentialType: uint32(rec.CredentialType),
		TypeName:       rec.CredentialType.String(),
		IssuedAt:       rec.IssuedAt,
		ExpiresAt:      rec.ExpiresAt,
		VerifiedAt:     rec.VerifiedAt.Unix(),
		Valid:          rec.Valid,
	}
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

func (h *HTTP) hexBytes(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid hex data")
	}
	return b, nil
}
