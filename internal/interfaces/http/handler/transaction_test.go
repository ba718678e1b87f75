package http_handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/javimaravillas/elixir-omg/internal/core/application"
	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/inmemory"
	rlp_serializer "github.com/javimaravillas/elixir-omg/internal/infrastructure/tx-serializer/rlp"
	http_handler "github.com/javimaravillas/elixir-omg/internal/interfaces/http/handler"
)

var (
	ctx = context.Background()

	alice = "0x" + strings.Repeat("aa", 20)
	bob   = "0x" + strings.Repeat("bb", 20)
	ether = "0x" + strings.Repeat("00", 20)
)

func TestCreateTransactionHandler(t *testing.T) {
	e := newTestEcho(t, map[string][]uint64{ether: {50, 30}})

	body := fmt.Sprintf(
		`{"owner": %q, "payments": [{"owner": %q, "currency": %q, "amount": 35}], "fee": {"currency": %q, "amount": 5}}`,
		alice, bob, ether, ether,
	)
	rr := doRequest(e, http.MethodPost, "/v1/transactions", body)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, false, resp["advisory"])
	require.NotEmpty(t, resp["txid"])
	require.NotEmpty(t, resp["raw"])
	require.Len(t, resp["inputs"], 2)

	t.Run("drafted transaction can be fetched", func(t *testing.T) {
		rr := doRequest(
			e, http.MethodGet, "/v1/transactions/"+resp["txid"].(string), "",
		)
		require.Equal(t, http.StatusOK, rr.Code)

		tx := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tx))
		require.Equal(t, alice, tx["owner"])
	})
}

func TestFindFundsHandler(t *testing.T) {
	e := newTestEcho(t, map[string][]uint64{ether: {50, 30}})

	body := fmt.Sprintf(
		`{"owner": %q, "payments": [{"owner": %q, "currency": %q, "amount": 35}], "fee": {"currency": %q, "amount": 5}}`,
		alice, bob, ether, ether,
	)
	rr := doRequest(e, http.MethodPost, "/v1/transactions/find-funds", body)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp["inputs"], 2)

	t.Run("leaves the utxo set untouched", func(t *testing.T) {
		rr := doRequest(e, http.MethodGet, "/v1/owners/"+alice+"/utxos", "")
		require.Equal(t, http.StatusOK, rr.Code)

		utxos := struct {
			Spendable []map[string]interface{} `json:"spendable"`
			Locked    []map[string]interface{} `json:"locked"`
		}{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &utxos))
		require.Len(t, utxos.Spendable, 2)
		require.Empty(t, utxos.Locked)
	})
}

func TestCreateTransactionHandlerInsufficientFunds(t *testing.T) {
	e := newTestEcho(t, map[string][]uint64{ether: {10}})

	body := fmt.Sprintf(
		`{"owner": %q, "payments": [{"owner": %q, "currency": %q, "amount": 35}], "fee": {"currency": %q, "amount": 0}}`,
		alice, bob, ether, ether,
	)
	rr := doRequest(e, http.MethodPost, "/v1/transactions", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	resp := struct {
		Error   string                 `json:"error"`
		Missing []domain.MissingAmount `json:"missing"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "insufficient_funds_error", resp.Error)
	require.Equal(t, []domain.MissingAmount{
		{Currency: ether, Missing: 25},
	}, resp.Missing)
}

func TestCreateTransactionHandlerInvalidOrder(t *testing.T) {
	e := newTestEcho(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing owner",
			body: fmt.Sprintf(
				`{"payments": [{"owner": %q, "currency": %q, "amount": 1}], "fee": {"currency": %q, "amount": 0}}`,
				bob, ether, ether,
			),
		},
		{
			name: "malformed owner",
			body: fmt.Sprintf(
				`{"owner": "not an address", "payments": [{"owner": %q, "currency": %q, "amount": 1}], "fee": {"currency": %q, "amount": 0}}`,
				bob, ether, ether,
			),
		},
		{
			name: "missing payments",
			body: fmt.Sprintf(`{"owner": %q}`, alice),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(e, http.MethodPost, "/v1/transactions", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGetBalanceHandler(t *testing.T) {
	e := newTestEcho(t, map[string][]uint64{ether: {50, 30}})

	rr := doRequest(e, http.MethodGet, "/v1/owners/"+alice+"/balance", "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := map[string]struct {
		Confirmed   uint64 `json:"confirmed"`
		Unconfirmed uint64 `json:"unconfirmed"`
		Locked      uint64 `json:"locked"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, uint64(80), resp[ether].Confirmed)

	rr = doRequest(e, http.MethodGet, "/v1/owners/not-an-address/balance", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListUtxosHandler(t *testing.T) {
	e := newTestEcho(t, map[string][]uint64{ether: {50, 30}})

	rr := doRequest(e, http.MethodGet, "/v1/owners/"+alice+"/utxos", "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := struct {
		Spendable []map[string]interface{} `json:"spendable"`
		Locked    []map[string]interface{} `json:"locked"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Spendable, 2)
	require.Empty(t, resp.Locked)
}

func newTestEcho(
	t *testing.T, amountsByCurrency map[string][]uint64,
) *echo.Echo {
	repoManager := inmemory.NewRepoManager()
	t.Cleanup(repoManager.Close)

	svc, err := application.NewTransactionService(
		repoManager, rlp_serializer.NewRLPTxSerializer(),
		application.FundSelectionStrategyGreedy, domain.DefaultParams(),
		time.Minute,
	)
	require.NoError(t, err)

	if len(amountsByCurrency) > 0 {
		utxos := make([]*domain.Utxo, 0)
		keys := make([]domain.UtxoKey, 0)
		blkNum := uint64(1)
		for currency, amounts := range amountsByCurrency {
			for _, amount := range amounts {
				key := domain.UtxoKey{BlkNum: blkNum}
				blkNum++
				utxos = append(utxos, &domain.Utxo{
					UtxoKey:  key,
					Owner:    alice,
					Currency: currency,
					Amount:   amount,
				})
				keys = append(keys, key)
			}
		}
		_, err := repoManager.UtxoRepository().AddUtxos(ctx, utxos)
		require.NoError(t, err)
		_, err = repoManager.UtxoRepository().ConfirmUtxos(
			ctx, keys, domain.UtxoStatus{BlockHeight: 1},
		)
		require.NoError(t, err)
	}

	e := echo.New()
	http_handler.NewTransactionHandler(svc).RegisterRoutes(e)
	return e
}

func doRequest(
	e *echo.Echo, method, path, body string,
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if method == http.MethodPost {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}
