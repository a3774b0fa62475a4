package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
)

const testTickers = `{
  "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
  "1": {"cik_str": 1067983, "ticker": "BRK-B", "title": "BERKSHIRE HATHAWAY INC"}
}`

const testFacts = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {
    "dei": {"EntityCommonStockSharesOutstanding": {}},
    "us-gaap": {"Revenues": {}, "Assets": {}, "NetIncomeLoss": {}}
  }
}`

const testConcept = `{
  "cik": 320193,
  "taxonomy": "us-gaap",
  "tag": "Assets",
  "units": {
    "USD": [
      {"end": "2023-09-30", "val": 352583000000, "form": "10-K"},
      {"end": "2022-09-24", "val": 352755000000, "form": "10-K"},
      {"end": "2023-09-30", "val": 352583000001, "form": "10-K/A"}
    ]
  }
}`

const testSharesConcept = `{
  "tag": "EarningsPerShareBasic",
  "units": {
    "USD/shares": [{"end": "2023-09-30", "val": 6.16}],
    "pure": [{"end": "2023-09-30", "val": 1}]
  }
}`

const testSubmissions = `{
  "cik": "320193",
  "name": "Apple Inc.",
  "tickers": ["AAPL"],
  "filings": {"recent": {
    "accessionNumber": ["0000320193-24-000001", "0000320193-23-000106", "0000320193-22-000108"],
    "filingDate": ["2024-02-02", "2023-11-03", "2022-10-28"],
    "reportDate": ["2023-12-30", "2023-09-30", "2022-09-24"],
    "form": ["10-Q", "10-K", "10-K"],
    "primaryDocument": ["aapl-20231230.htm", "aapl-20230930.htm", "aapl-20220924.htm"]
  }}
}`

func newTestServer(t *testing.T, registryHits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		if registryHits != nil {
			atomic.AddInt32(registryHits, 1)
		}
		w.Write([]byte(testTickers))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFacts))
	})
	mux.HandleFunc("/api/xbrl/companyconcept/CIK0000320193/us-gaap/Assets.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testConcept))
	})
	mux.HandleFunc("/api/xbrl/companyconcept/CIK0000320193/us-gaap/EarningsPerShareBasic.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testSharesConcept))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testSubmissions))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html><body>Item 1A. Risk Factors</body></html>"))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000000500.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient("finagent-test test@example.com",
		WithBaseURLs(server.URL, server.URL),
		WithLogger(arbor.NewLogger()),
		WithRateLimit(1000))
}

func TestResolve(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	client := newTestClient(server)
	ctx := context.Background()

	company, err := client.Resolve(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", company.CIK)
	assert.Equal(t, "AAPL", company.Ticker)
	assert.Equal(t, "Apple Inc.", company.Title)

	// Share classes are written with a dot by users and a dash by the SEC
	company, err = client.Resolve(ctx, "BRK.B")
	require.NoError(t, err)
	assert.Equal(t, "0001067983", company.CIK)

	_, err = client.Resolve(ctx, "ZZZZ")
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "registry should be fetched once")
}

func TestFetchConcepts(t *testing.T) {
	server := newTestServer(t, nil)
	client := newTestClient(server)

	concepts, err := client.FetchConcepts(context.Background(), "320193")
	require.NoError(t, err)
	assert.Equal(t, []string{"Assets", "NetIncomeLoss", "Revenues"}, concepts)
}

func TestFetchConcepts_UpstreamError(t *testing.T) {
	server := newTestServer(t, nil)
	client := newTestClient(server)

	_, err := client.FetchConcepts(context.Background(), "500")
	require.Error(t, err)
	assert.True(t, common.IsUpstream(err))
}

func TestFetchConceptSeries(t *testing.T) {
	server := newTestServer(t, nil)
	client := newTestClient(server)
	ctx := context.Background()

	series, err := client.FetchConceptSeries(ctx, "0000320193", "Assets")
	require.NoError(t, err)
	assert.Equal(t, "USD", series.Unit)
	require.Len(t, series.Points, 2)
	assert.Equal(t, 2022, series.Points[0].PeriodEnd.Year())
	assert.Equal(t, 352583000001.0, series.Points[1].Value, "last reported value wins for a period end")

	series, err = client.FetchConceptSeries(ctx, "320193", "EarningsPerShareBasic")
	require.NoError(t, err)
	assert.Equal(t, "USD/shares", series.Unit)

	_, err = client.FetchConceptSeries(ctx, "320193", "InventoryNet")
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))
}

func TestLatestFiling(t *testing.T) {
	server := newTestServer(t, nil)
	client := newTestClient(server)
	ctx := context.Background()

	filing, err := client.LatestFiling(ctx, "320193", "10-K")
	require.NoError(t, err)
	assert.Equal(t, "0000320193-23-000106", filing.AccessionNumber)
	assert.Equal(t, "aapl-20230930.htm", filing.PrimaryDocument)
	assert.Equal(t, 2023, filing.ReportDate.Year())
	assert.Equal(t, server.URL+"/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", filing.URL)

	doc, err := client.FetchDocument(ctx, filing)
	require.NoError(t, err)
	assert.Contains(t, doc, "Risk Factors")

	_, err = client.LatestFiling(ctx, "320193", "20-F")
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))
}

func TestNormalizeCIK(t *testing.T) {
	assert.Equal(t, "0000320193", normalizeCIK("320193"))
	assert.Equal(t, "0000320193", normalizeCIK("CIK0000320193"))
	assert.Equal(t, "0000320193", PadCIK(320193))
}
