package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	apphttp "github.com/harborfin/compliance-middleware/pkg/app/http"
	"github.com/harborfin/compliance-middleware/pkg/badge"
	"github.com/harborfin/compliance-middleware/pkg/credential"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service *Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for credential badges on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/badges", func(r chi.Router) {
		r.Post("/", apphttp.HandleError(h.mint))
		r.Post("/batch", apphttp.HandleError(h.batchMint))
		r.Get("/{badgeID}", apphttp.HandleError(h.get))
		r.Delete("/{badgeID}", apphttp.HandleError(h.revoke))
		r.Get("/holders/{holder}", apphttp.HandleError(h.holderBadges))
		r.Get("/holders/{holder}/valid", apphttp.HandleError(h.hasValid))
	})
}

type mintBadgeRequest struct {
	Caller         string `json:"caller"`
	Holder         string `json:"holder"`
	CredentialType uint32 `json:"credential_type"`
	ContentHash    string `json:"content_hash"`
	ExpiresAt      uint64 `json:"expires_at"`
	MetadataRef    string `json:"metadata_ref"`
}

type batchMintRequest struct {
	Caller  string             `json:"caller"`
	Entries []mintBadgeRequest `json:"entries"`
}

type batchMintResult struct {
	BadgeID uint64 `json:"badge_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type batchMintResponse struct {
	// BatchID tags the batch in the audit log.
	BatchID string            `json:"batch_id"`
	Results []batchMintResult `json:"results"`
}

type revokeBadgeRequest struct {
	Caller string `json:"caller"`
	// RevokeCredential also invalidates the verified credential backing
	// the badge.
	RevokeCredential bool `json:"revoke_credential"`
}

type badgeResponse struct {
	ID             uint64 `json:"id"`
	Holder         string `json:"holder"`
	CredentialType uint32 `json:"credential_type"`
	TypeName       string `json:"type_name"`
	ContentHash    string `json:"content_hash"`
	IssuedAt       int64  `json:"issued_at"`
	ExpiresAt      uint64 `json:"expires_at"`
	MetadataRef    string `json:"metadata_ref,omitempty"`
}

func (h *HTTP) mint(w http.ResponseWriter, r *http.Request) error {
	var req mintBadgeRequest
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

	id, err := h.service.MintCredential(r.Context(), caller, holder,
		credential.Type(req.CredentialType), common.HexToHash(req.ContentHash),
		req.ExpiresAt, req.MetadataRef)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, map[string]uint64{"badge_id": id})
	return nil
}

func (h *HTTP) batchMint(w http.ResponseWriter, r *http.Request) error {
	var req batchMintRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	reqs := make([]MintRequest, len(req.Entries))
	for i, e := range req.Entries {
		holder, err := h.address(e.Holder)
		if err != nil {
			return err
		}
		reqs[i] = MintRequest{
			Holder:         holder,
			CredentialType: credential.Type(e.CredentialType),
			ContentHash:    common.HexToHash(e.ContentHash),
			ExpiresAt:      e.ExpiresAt,
			MetadataRef:    e.MetadataRef,
		}
	}

	batchID := uuid.NewString()
	results := h.service.BatchMintCredentials(r.Context(), caller, reqs)

	resp := batchMintResponse{BatchID: batchID, Results: make([]batchMintResult, len(results))}
	failed := 0
	for i, res := range results {
		resp.Results[i].BadgeID = res.BadgeID
		if res.Err != nil {
			resp.Results[i].Error = res.Err.Error()
			failed++
		}
	}
	h.logger.Info("badge batch processed",
		zap.String("batch_id", batchID),
		zap.Int("entries", len(results)),
		zap.Int("failed", failed))
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	id, err := h.badgeID(r)
	if err != nil {
		return err
	}
	b, err := h.service.GetBadge(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, toBadgeResponse(b))
	return nil
}

func (h *HTTP) revoke(w http.ResponseWriter, r *http.Request) error {
	id, err := h.badgeID(r)
	if err != nil {
		return err
	}
	var req revokeBadgeRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	if req.RevokeCredential {
		err = h.service.RevokeWithCredential(r.Context(), caller, id)
	} else {
		err = h.service.RevokeBadge(r.Context(), caller, id)
	}
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) holderBadges(w http.ResponseWriter, r *http.Request) error {
	holder, err := h.address(chi.URLParam(r, "holder"))
	if err != nil {
		return err
	}
	badges, err := h.service.HolderBadges(r.Context(), holder)
	if err != nil {
		return err
	}
	resp := make([]*badgeResponse, len(badges))
	for i, b := range badges {
		resp[i] = toBadgeResponse(b)
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) hasValid(w http.ResponseWriter, r *http.Request) error {
	holder, err := h.address(chi.URLParam(r, "holder"))
	if err != nil {
		return err
	}
	raw, err := strconv.ParseUint(r.URL.Query().Get("type"), 10, 32)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid credential type")
	}

	valid, err := h.service.HasValidCredential(r.Context(), holder, credential.Type(raw))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
	return nil
}

func toBadgeResponse(b *badge.Badge) *badgeResponse {
	return &badgeResponse{
		ID:             b.ID,
		Holder:         b.Holder.Hex(),
		CredentialType: uint32(b.CredentialType),
		TypeName:       b.CredentialType.String(),
		ContentHash:    b.ContentHash.Hex(),
		IssuedAt:       b.IssuedAt.Unix(),
		ExpiresAt:      b.ExpiresAt,
		MetadataRef:    b.MetadataRef,
	}
}

func (h *HTTP) badgeID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "badgeID"), 10, 64)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid badge id")
	}
	return id, nil
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
