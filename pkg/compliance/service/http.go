package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	apphttp "github.com/harborfin/compliance-middleware/pkg/app/http"
)

// HTTP wraps the Engine to provide HTTP endpoints. Modules are wired in at
// startup; the API only exposes binding, inspection and transfer checks.
type HTTP struct {
	engine *Engine
	logger *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the compliance engine on the
// given chi router
func RegisterRoutes(r chi.Router, engine *Engine, logger *zap.Logger) {
	h := &HTTP{
		engine: engine,
		logger: logger,
	}

	r.Route("/compliance", func(r chi.Router) {
		r.Post("/token", apphttp.HandleError(h.bindToken))
		r.Delete("/token", apphttp.HandleError(h.unbindToken))
		r.Get("/token", apphttp.HandleError(h.boundToken))
		r.Get("/modules", apphttp.HandleError(h.modules))
		r.Delete("/modules/{name}", apphttp.HandleError(h.removeModule))
		r.Post("/can-transfer", apphttp.HandleError(h.canTransfer))
	})
}

type bindTokenRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

type canTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (h *HTTP) bindToken(w http.ResponseWriter, r *http.Request) error {
	var req bindTokenRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	token, err := h.address(req.Token)
	if err != nil {
		return err
	}

	if err := h.engine.BindToken(caller, token); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) unbindToken(w http.ResponseWriter, r *http.Request) error {
	var req bindTokenRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return err
	}
	token, err := h.address(req.Token)
	if err != nil {
		return err
	}

	if err := h.engine.UnbindToken(caller, token); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) boundToken(w http.ResponseWriter, r *http.Request) error {
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{"token": h.engine.BoundToken().Hex()})
	return nil
}

func (h *HTTP) modules(w http.ResponseWriter, r *http.Request) error {
	apphttp.WriteJSON(w, http.StatusOK, map[string][]string{"modules": h.engine.Modules()})
	return nil
}

func (h *HTTP) removeModule(w http.ResponseWriter, r *http.Request) error {
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

	if err := h.engine.RemoveModule(r.Context(), caller, chi.URLParam(r, "name")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) canTransfer(w http.ResponseWriter, r *http.Request) error {
	var req canTransferRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	from, err := h.address(req.From)
	if err != nil {
		return err
	}
	to, err := h.address(req.To)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid amount")
	}

	allowed, err := h.engine.CanTransfer(r.Context(), from, to, amount)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
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
