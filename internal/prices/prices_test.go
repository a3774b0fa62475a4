package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
)

// 2024-01-02 and 2024-01-03 14:30 UTC, plus a null holiday row
const yahooResponse = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","exchangeTimezoneName":"America/New_York"},
  "timestamp":[1704205800,1704292200,1704378600],
  "indicators":{
    "quote":[{"open":[100,102,null],"high":[105,106,null],"low":[99,101,null],"close":[104,100,null],"volume":[1000,2000,null]}],
    "adjclose":[{"adjclose":[52,50,null]}]
  }
}],"error":null}}`

func TestYahooHistory(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(yahooResponse))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL), WithYahooLogger(arbor.NewLogger()))
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := client.History(context.Background(), common.ParseTicker("AAPL"), from, from.AddDate(0, 0, 5))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "AAPL", series.Symbol)
	require.Len(t, series.Bars, 2)

	first := series.Bars[0]
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), first.Date)
	assert.InDelta(t, 52.0, first.Close, 1e-9)
	assert.InDelta(t, 50.0, first.Open, 1e-9)
	assert.InDelta(t, 52.5, first.High, 1e-9)
	assert.Equal(t, int64(1000), first.Volume)
	assert.InDelta(t, 50.0, series.Bars[1].Close, 1e-9)
}

func TestYahooHistory_SkipsPartialBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{
  "meta":{"symbol":"AAPL"},
  "timestamp":[1704205800,1704292200],
  "indicators":{"quote":[{"open":[100,102],"high":[105,null],"low":[99,null],"close":[104,103],"volume":[1000,2000]}]}
}],"error":null}}`))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL), WithYahooLogger(arbor.NewLogger()))
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := client.History(context.Background(), common.ParseTicker("AAPL"), from, from.AddDate(0, 0, 5))
	require.NoError(t, err)

	require.Len(t, series.Bars, 1)
	assert.Equal(t, 104.0, series.Bars[0].Close)
	assert.Equal(t, 99.0, series.Bars[0].Low)
}

func TestYahooHistory_UnknownSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	_, err := client.History(context.Background(), common.ParseTicker("ZZZZ"), time.Now().AddDate(0, 0, -10), time.Now())
	require.Error(t, err)
	assert.True(t, common.IsNoData(err))
}

func TestYahooHistory_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	_, err := client.History(context.Background(), common.ParseTicker("^GSPC"), time.Now().AddDate(0, 0, -10), time.Now())
	require.Error(t, err)
	assert.True(t, common.IsUpstream(err))
}

func TestEODHDHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/GSPC.INDX", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		w.Write([]byte(`[
			{"date":"2024-01-03","open":10,"high":11,"low":9,"close":10,"adjusted_close":10,"volume":5},
			{"date":"2024-01-02","open":20,"high":22,"low":18,"close":20,"adjusted_close":10,"volume":7},
			{"date":"bad","open":1,"high":1,"low":1,"close":1,"adjusted_close":1,"volume":1}
		]`))
	}))
	defer server.Close()

	client := NewEODHDClient("test-key", WithBaseURL(server.URL), WithLogger(arbor.NewLogger()))
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := client.History(context.Background(), common.ParseTicker("^GSPC"), from, from.AddDate(0, 0, 5))
	require.NoError(t, err)

	require.Len(t, series.Bars, 2)
	assert.Equal(t, 2, series.Bars[0].Date.Day())
	assert.InDelta(t, 10.0, series.Bars[0].Close, 1e-9)
	assert.InDelta(t, 11.0, series.Bars[0].High, 1e-9)
	assert.Equal(t, "^GSPC", series.Symbol)
}

func TestNewProvider(t *testing.T) {
	logger := arbor.NewLogger()

	p, err := NewProvider(common.PricesConfig{Provider: "yahoo"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())

	_, err = NewProvider(common.PricesConfig{Provider: "eodhd"}, logger)
	assert.Error(t, err)

	p, err = NewProvider(common.PricesConfig{Provider: "eodhd", EODHDAPIKey: "k"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "eodhd", p.Name())

	_, err = NewProvider(common.PricesConfig{Provider: "bloomberg"}, logger)
	assert.Error(t, err)
}

func TestLatestClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(yahooResponse))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	price, err := LatestClose(context.Background(), client, common.ParseTicker("AAPL"), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 50.0, price, 1e-9)
}

func TestQuoter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{}]}}]}}`))
	}))
	defer server.Close()

	q := NewQuoter(NewYahooClient(WithYahooBaseURL(server.URL)))
	_, err := q.LatestClose(context.Background(), common.ParseTicker("AAPL"))
	require.Error(t, err)
	assert.True(t, common.IsNoData(err))
}
