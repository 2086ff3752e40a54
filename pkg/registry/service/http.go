package service

import (
	"encoding/json"
	"io"
	"net/http"

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

// RegisterRoutes registers HTTP endpoints for the identity registry on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/registry", func(r chi.Router) {
		r.Post("/bindings", apphttp.HandleError(h.register))
		r.Post("/bindings/batch", apphttp.HandleError(h.batchRegister))
		r.Put("/bindings/{wallet}/identity", apphttp.HandleError(h.updateIdentity))
		r.Put("/bindings/{wallet}/country", apphttp.HandleError(h.updateCountry))
		r.Delete("/bindings/{wallet}", apphttp.HandleError(h.deleteBinding))
		r.Get("/bindings/{wallet}", apphttp.HandleError(h.getBinding))
		r.Get("/bindings/{wallet}/verified", apphttp.HandleError(h.isVerified))
	})
}

type bindingRequest struct {
	Caller   string `json:"caller"`
	Wallet   string `json:"wallet"`
	Identity string `json:"identity"`
	Country  uint16 `json:"country"`
}

type batchBindingRequest struct {
	Caller     string   `json:"caller"`
	Wallets    []string `json:"wallets"`
	Identities []string `json:"identities"`
	Countries  []uint16 `json:"countries"`
}

type bindingResponse struct {
	Wallet   string `json:"wallet"`
	Identity string `json:"identity"`
	Country  uint16 `json:"country"`
}

func (h *HTTP) register(w http.ResponseWriter, r *http.Request) error {
	var req bindingRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	wallet, err := h.address(req.Wallet)
	if err != nil {
		return err
	}
	identityAddr, err := h.address(req.Identity)
	if err != nil {
		return err
	}

	if err := h.service.RegisterIdentity(r.Context(), caller, wallet, identityAddr, req.Country); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) batchRegister(w http.ResponseWriter, r *http.Request) error {
	var req batchBindingRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	wallets, err := h.addresses(req.Wallets)
	if err != nil {
		return err
	}
	identities, err := h.addresses(req.Identities)
	if err != nil {
		return err
	}

	if err := h.service.BatchRegisterIdentity(r.Context(), caller, wallets, identities, req.Countries); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) updateIdentity(w http.ResponseWriter, r *http.Request) error {
	wallet, err := h.address(chi.URLParam(r, "wallet"))
	if err != nil {
		return err
	}
	var req bindingRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	identityAddr, err := h.address(req.Identity)
	if err != nil {
		return err
	}

	if err := h.service.UpdateIdentity(r.Context(), caller, wallet, identityAddr); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) updateCountry(w http.ResponseWriter, r *http.Request) error {
	wallet, err := h.address(chi.URLParam(r, "wallet"))
	if err != nil {
		return err
	}
	var req bindingRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}

	if err := h.service.UpdateCountry(r.Context(), caller, wallet, req.Country); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) deleteBinding(w http.ResponseWriter, r *http.Request) error {
	wallet, err := h.address(chi.URLParam(r, "wallet"))
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

	if err := h.service.DeleteIdentity(r.Context(), caller, wallet); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) getBinding(w http.ResponseWriter, r *http.Request) error {
	wallet, err := h.address(chi.URLParam(r, "wallet"))
	if err != nil {
		return err
	}

	identityAddr, err := h.service.IdentityOf(r.Context(), wallet)
	if err != nil {
		return err
	}
	country, err := h.service.InvestorCountry(r.Context(), wallet)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, &bindingResponse{
		Wallet:   wallet.Hex(),
		Identity: identityAddr.Hex(),
		Country:  country,
	})
	return nil
}

func (h *HTTP) isVerified(w http.ResponseWriter, r *http.Request) error {
	wallet, err := h.address(chi.URLParam(r, "wallet"))
	if err != nil {
		return err
	}

	verified, err := h.service.IsVerified(r.Context(), wallet)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"verified": verified})
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

func (h *HTTP) addresses(in []string) ([]common.Address, error) {
	out := make([]common.Address, len(in))
	for i, s := range in {
		addr, err := h.address(s)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}
