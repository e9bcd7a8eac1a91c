package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type briefQuery struct {
	Date    string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Symbols string `query:"symbols" default:"BTC,ETH" validate:"symbols"`
	TZ      string `query:"tz" default:"Asia/Seoul" validate:"required,timezone"`
}

type dailyBody struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=3,symbols"`
}

func bind(t *testing.T, req *http.Request, dst interface{}) interface{} {
	t.Helper()
	c := echo.New().NewContext(req, httptest.NewRecorder())
	return ReadAndValidateRequest(c, dst)
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	q := &briefQuery{}
	verr := bind(t, httptest.NewRequest(http.MethodGet, "/?date=2024-05-01", nil), q)
	require.Nil(t, verr)
	assert.Equal(t, "BTC,ETH", q.Symbols)
	assert.Equal(t, "Asia/Seoul", q.TZ)
}

func TestReadAndValidateReportsWireNames(t *testing.T) {
	verr := bind(t, httptest.NewRequest(http.MethodGet, "/?date=05/01/2024&tz=Nowhere/City&symbols=BTC,%24%24", nil), &briefQuery{})
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	require.Contains(t, byField, "date")
	assert.Equal(t, "ERR_DATETIME", byField["date"].Code)
	assert.Equal(t, "2006-01-02", byField["date"].Params["layout"])
	require.Contains(t, byField, "tz")
	assert.Contains(t, byField["tz"].Message, "IANA timezone")
	require.Contains(t, byField, "symbols")
	assert.Equal(t, "ERR_SYMBOLS", byField["symbols"].Code)
}

func TestReadAndValidateJSONBody(t *testing.T) {
	post := func(body string) interface{} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return bind(t, req, &dailyBody{})
	}
	assert.Nil(t, post(`{"symbols":["btc","eth"]}`))
	assert.NotNil(t, post(`{"symbols":["a","b","c","d"]}`))
	assert.NotNil(t, post(`{"symbols":["BTC-PERP"]}`))
	assert.NotNil(t, post(`{"symbols":`))
}
