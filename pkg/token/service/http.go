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

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service *Service
	logger  *zap.Logger
}

// RegisterRoutes registers HTTP endpoints for the permissioned token on the
// given chi router
func RegisterRoutes(r chi.Router, service *Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/token", func(r chi.Router) {
		r.Post("/transfers", apphttp.HandleError(h.transfer))
		r.Post("/mints", apphttp.HandleError(h.mint))
		r.Post("/burns", apphttp.HandleError(h.burn))
		r.Get("/balances/{holder}", apphttp.HandleError(h.balance))
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type supplyRequest struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (h *HTTP) transfer(w http.ResponseWriter, r *http.Request) error {
	var req transferRequest
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
	amount, err := h.amount(req.Amount)
	if err != nil {
		return err
	}

	if err := h.service.Transfer(r.Context(), from, to, amount); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) mint(w http.ResponseWriter, r *http.Request) error {
	caller, account, amount, err := h.supplyParams(r)
	if err != nil {
		return err
	}
	if err := h.service.Mint(r.Context(), caller, account, amount); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) burn(w http.ResponseWriter, r *http.Request) error {
	caller, account, amount, err := h.supplyParams(r)
	if err != nil {
		return err
	}
	if err := h.service.Burn(r.Context(), caller, account, amount); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *HTTP) balance(w http.ResponseWriter, r *http.Request) error {
	holder, err := h.address(chi.URLParam(r, "holder"))
	if err != nil {
		return err
	}
	bal, err := h.service.BalanceOf(r.Context(), holder)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{"balance": bal.String()})
	return nil
}

func (h *HTTP) supplyParams(r *http.Request) (common.Address, common.Address, decimal.Decimal, error) {
	var req supplyRequest
	if err := h.decode(r, &req); err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	caller, err := h.address(req.Caller)
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	account, err := h.address(req.Account)
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	amount, err := h.amount(req.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	return caller, account, amount, nil
}

func (h *HTTP) amount(s string) (decimal.Decimal, error) {
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
