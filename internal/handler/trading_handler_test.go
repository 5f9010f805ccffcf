package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetAccountPaperWallet(t *testing.T) {
	wallet := exchange.NewPaperWallet(nil, 1000, zap.NewNop())
	h := &TradingHandler{exchange: wallet, logger: zap.NewNop()}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/trading/account", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.GetAccount(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Mode     string             `json:"mode"`
		Balances map[string]float64 `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "paper", body.Mode)
	assert.Equal(t, 1000.0, body.Balances["USDT"])
}
