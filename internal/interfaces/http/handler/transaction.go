package http_handler

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/javimaravillas/elixir-omg/internal/core/application"
	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

type transaction struct {
	appSvc *application.TransactionService
}

func NewTransactionHandler(appSvc *application.TransactionService) *transaction {
	return &transaction{appSvc}
}

func (t *transaction) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/transactions", t.createTransaction)
	e.POST("/v1/transactions/find-funds", t.findFunds)
	e.GET("/v1/transactions/:txid", t.getTransaction)
	e.GET("/v1/owners/:owner/balance", t.getBalance)
	e.GET("/v1/owners/:owner/utxos", t.listUtxos)
}

type paymentRequest struct {
	Owner    string `json:"owner,omitempty"`
	Currency string `json:"currency"`
	Amount   uint64 `json:"amount"`
}

type feeRequest struct {
	Currency string `json:"currency"`
	Amount   uint64 `json:"amount"`
}

type createTransactionRequest struct {
	Owner    string           `json:"owner"`
	Payments []paymentRequest `json:"payments"`
	Fee      feeRequest       `json:"fee"`
	Metadata string           `json:"metadata,omitempty"`
}

type utxoResponse struct {
	BlkNum   uint64 `json:"blknum"`
	TxIndex  uint32 `json:"txindex"`
	OIndex   uint32 `json:"oindex"`
	Owner    string `json:"owner"`
	Currency string `json:"currency"`
	Amount   uint64 `json:"amount"`
}

type createTransactionResponse struct {
	Advisory    bool             `json:"advisory"`
	Txid        string           `json:"txid,omitempty"`
	Raw         string           `json:"raw,omitempty"`
	SigningHash string           `json:"signing_hash,omitempty"`
	Inputs      []utxoResponse   `json:"inputs"`
	Outputs     []paymentRequest `json:"outputs"`
	Fee         feeRequest       `json:"fee"`
}

type findFundsResponse struct {
	Inputs  []utxoResponse   `json:"inputs"`
	Outputs []paymentRequest `json:"outputs"`
	Fee     feeRequest       `json:"fee"`
}

type transactionResponse struct {
	Txid        string `json:"txid"`
	Raw         string `json:"raw"`
	Owner       string `json:"owner"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockHeight uint64 `json:"block_height,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

type balanceResponse struct {
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed uint64 `json:"unconfirmed"`
	Locked      uint64 `json:"locked"`
}

type listUtxosResponse struct {
	Spendable []utxoResponse `json:"spendable"`
	Locked    []utxoResponse `json:"locked"`
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Missing []domain.MissingAmount `json:"missing,omitempty"`
}

func (t *transaction) createTransaction(c echo.Context) error {
	order, err := decodeOrder(c)
	if err != nil {
		return sendError(c, http.StatusBadRequest, err)
	}

	draft, err := t.appSvc.CreateTransaction(c.Request().Context(), order)
	if err != nil {
		return sendDomainError(c, err)
	}

	resp := createTransactionResponse{
		Advisory:    draft.IsAdvisory(),
		Raw:         hex.EncodeToString(draft.RawBytes),
		SigningHash: hex.EncodeToString(draft.SigningHash),
		Inputs:      parseUtxos(draft.Inputs),
		Outputs:     parsePayments(draft.Outputs),
		Fee:         feeRequest{Currency: draft.Fee.Currency, Amount: draft.Fee.Amount},
	}
	if !draft.IsAdvisory() {
		resp.Txid = hex.EncodeToString(draft.SigningHash)
	}
	return c.JSON(http.StatusOK, resp)
}

func (t *transaction) findFunds(c echo.Context) error {
	order, err := decodeOrder(c)
	if err != nil {
		return sendError(c, http.StatusBadRequest, err)
	}

	draft, err := t.appSvc.FindFunds(c.Request().Context(), order)
	if err != nil {
		return sendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, findFundsResponse{
		Inputs:  parseUtxos(draft.Inputs),
		Outputs: parsePayments(draft.Outputs),
		Fee:     feeRequest{Currency: draft.Fee.Currency, Amount: draft.Fee.Amount},
	})
}

func (t *transaction) getTransaction(c echo.Context) error {
	txid := c.Param("txid")
	if err := validateTxid(txid); err != nil {
		return sendError(c, http.StatusBadRequest, err)
	}

	txInfo, err := t.appSvc.GetTransactionInfo(c.Request().Context(), txid)
	if err != nil {
		return sendError(c, http.StatusNotFound, err)
	}

	return c.JSON(http.StatusOK, transactionResponse{
		Txid:        txInfo.Txid,
		Raw:         txInfo.Raw,
		Owner:       txInfo.Owner,
		BlockHash:   txInfo.BlockHash,
		BlockHeight: txInfo.BlockHeight,
		BlockTime:   txInfo.BlockTime,
	})
}

func (t *transaction) getBalance(c echo.Context) error {
	balance, err := t.appSvc.GetBalance(c.Request().Context(), c.Param("owner"))
	if err != nil {
		return sendError(c, http.StatusBadRequest, err)
	}

	resp := make(map[string]balanceResponse, len(balance))
	for currency, b := range balance {
		resp[currency] = balanceResponse{
			Confirmed:   b.Confirmed,
			Unconfirmed: b.Unconfirmed,
			Locked:      b.Locked,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (t *transaction) listUtxos(c echo.Context) error {
	spendable, locked, err := t.appSvc.ListUtxos(
		c.Request().Context(), c.Param("owner"),
	)
	if err != nil {
		return sendError(c, http.StatusBadRequest, err)
	}

	return c.JSON(http.StatusOK, listUtxosResponse{
		Spendable: parseUtxos(spendable),
		Locked:    parseUtxos(locked),
	})
}

// decodeOrder binds and validates the order carried by a POST body.
func decodeOrder(c echo.Context) (domain.Order, error) {
	req := createTransactionRequest{}
	if err := c.Bind(&req); err != nil {
		return domain.Order{}, err
	}

	var metadata []byte
	if req.Metadata != "" {
		buf, err := hex.DecodeString(req.Metadata)
		if err != nil {
			return domain.Order{}, errors.New("invalid metadata format, must be hex")
		}
		metadata = buf
	}

	payments := make([]domain.Payment, 0, len(req.Payments))
	for _, p := range req.Payments {
		payments = append(payments, domain.Payment{
			Owner: p.Owner, Currency: p.Currency, Amount: p.Amount,
		})
	}

	order := domain.Order{
		Owner:    req.Owner,
		Payments: payments,
		Fee:      domain.Fee{Currency: req.Fee.Currency, Amount: req.Fee.Amount},
		Metadata: metadata,
	}
	if err := order.Validate(); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func parseUtxos(utxos []*domain.Utxo) []utxoResponse {
	list := make([]utxoResponse, 0, len(utxos))
	for _, u := range utxos {
		list = append(list, utxoResponse{
			BlkNum:   u.BlkNum,
			TxIndex:  u.TxIndex,
			OIndex:   u.OIndex,
			Owner:    u.Owner,
			Currency: u.Currency,
			Amount:   u.Amount,
		})
	}
	return list
}

func parsePayments(payments []domain.Payment) []paymentRequest {
	list := make([]paymentRequest, 0, len(payments))
	for _, p := range payments {
		list = append(list, paymentRequest{
			Owner: p.Owner, Currency: p.Currency, Amount: p.Amount,
		})
	}
	return list
}

func validateTxid(txid string) error {
	if txid == "" {
		return errors.New("missing txid")
	}
	buf, err := hex.DecodeString(txid)
	if err != nil {
		return errors.New("invalid txid format, must be hex")
	}
	if len(buf) != 32 {
		return errors.New("invalid txid length, must be 32 bytes in hex format")
	}
	return nil
}

// sendDomainError maps a funding failure to its HTTP representation. An
// insufficient funds error carries the per-currency missing amounts in the
// response body.
func sendDomainError(c echo.Context, err error) error {
	var insufficientFunds *domain.InsufficientFundsError
	if errors.As(err, &insufficientFunds) {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "insufficient_funds_error",
			Missing: insufficientFunds.Missing,
		})
	}

	switch {
	case errors.Is(err, domain.ErrTooManyInputs),
		errors.Is(err, domain.ErrTooManyOutputs),
		errors.Is(err, domain.ErrEmptyTransaction),
		errors.Is(err, domain.ErrMissingOrderOwner),
		errors.Is(err, domain.ErrMissingPayments),
		errors.Is(err, domain.ErrInvalidAmount):
		return sendError(c, http.StatusBadRequest, err)
	default:
		return sendError(c, http.StatusInternalServerError, err)
	}
}

func sendError(c echo.Context, code int, err error) error {
	return c.JSON(code, errorResponse{Error: err.Error()})
}
