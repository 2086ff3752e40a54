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
	"github.com/harborfin/compliance-middleware/pkg/identity"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service *Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the identity service on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/identities", func(r chi.Router) {
		r.Post("/", apphttp.HandleError(h.create))
		r.Get("/{address}", apphttp.HandleError(h.get))
		r.Post("/{address}/keys", apphttp.HandleError(h.addKey))
		r.Delete("/{address}/keys", apphttp.HandleError(h.removeKey))
		r.Post("/{address}/claims", apphttp.HandleError(h.addClaim))
		r.Delete("/{address}/claims/{claimID}", apphttp.HandleError(h.removeClaim))
	})
}

type createIdentityRequest struct {
	Address          string `json:"address"`
	ManagementWallet string `json:"management_wallet"`
}

type keyRequest struct {
	Caller  string `json:"caller"`
	KeyID   string `json:"key_id"`
	Purpose uint8  `json:"purpose"`
	Type    uint8  `json:"type"`
}

type claimRequest struct {
	Caller    string `json:"caller"`
	Topic     uint64 `json:"topic"`
	Scheme    uint64 `json:"scheme"`
	Issuer    string `json:"issuer"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
	URI       string `json:"uri"`
}

type keyResponse struct {
	ID       string  `json:"id"`
	Purposes []uint8 `json:"purposes"`
	Type     uint8   `json:"type"`
}

type claimResponse struct {
	ID        string `json:"id"`
	Topic     uint64 `json:"topic"`
	Scheme    uint64 `json:"scheme"`
	Issuer    string `json:"issuer"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
	URI       string `json:"uri"`
}

type identityResponse struct {
	Address string          `json:"address"`
	Keys    []keyResponse   `json:"keys"`
	Claims  []claimResponse `json:"claims"`
}

func (h *HTTP) create(w http.ResponseWriter, r *http.Request) error {
	var req createIdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		return err
	}
	wallet, err := parseAddress(req.ManagementWallet)
	if err != nil {
		return err
	}

	id, err := h.service.CreateIdentity(r.Context(), addr, wallet)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, toIdentityResponse(id))
	return nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return err
	}
	id, err := h.service.GetIdentity(r.Context(), addr)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, toIdentityResponse(id))
	return nil
}

func (h *HTTP) addKey(w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return err
	}
	var req keyRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.AddKey(r.Context(), addr, caller,
		common.HexToHash(req.KeyID),
		identity.KeyPurpose(req.Purpose),
		identity.KeyType(req.Type)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) removeKey(w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return err
	}
	var req keyRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.RemoveKey(r.Context(), addr, caller,
		common.HexToHash(req.KeyID),
		identity.KeyPurpose(req.Purpose)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) addClaim(w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return err
	}
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return err
	}
	issuer, err := parseAddress(req.Issuer)
	if err != nil {
		return err
	}
	sig, err := parseHexBytes(req.Signature)
	if err != nil {
		return err
	}
	data, err := parseHexBytes(req.Data)
	if err != nil {
		return err
	}

	claimID, err := h.service.AddClaim(r.Context(), addr, caller, identity.Claim{
		Topic:     req.Topic,
		Scheme:    req.Scheme,
		Issuer:    issuer,
		Signature: sig,
		Data:      data,
		URI:       req.URI,
	})
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, map[string]string{"claim_id": claimID.Hex()})
	return nil
}

func (h *HTTP) removeClaim(w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return err
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.RemoveClaim(r.Context(), addr, caller, common.HexToHash(chi.URLParam(r, "claimID"))); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func toIdentityResponse(id *identity.Identity) *identityResponse {
	resp := &identityResponse{
		Address: id.Address.Hex(),
		Keys:    make([]keyResponse, 0, len(id.Keys)),
		Claims:  make([]claimResponse, 0, len(id.Claims)),
	}
	for _, k := range id.Keys {
		purposes := make([]uint8, len(k.Purposes))
		for i, p := range k.Purposes {
			purposes[i] = uint8(p)
		}
		resp.Keys = append(resp.Keys, keyResponse{
			ID:       k.ID.Hex(),
			Purposes: purposes,
			Type:     uint8(k.Type),
		})
	}
	for _, c := range id.Claims {
		resp.Claims = append(resp.Claims, claimResponse{
			ID:        c.ID.Hex(),
			Topic:     c.Topic,
			Scheme:    c.Scheme,
			Issuer:    c.Issuer.Hex(),
			Signature: hexutil.Encode(c.Signature),
			Data:      hexutil.Encode(c.Data),
			URI:       c.URI,
		})
	}
	return resp
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, apperrors.BadRequestError(nil, "invalid address: "+s)
	}
	return common.HexToAddress(s), nil
}

func parseHexBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid hex data")
	}
	return b, nil
}
