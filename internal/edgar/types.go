package edgar

import "encoding/json"

// tickerEntry is one row of company_tickers.json
// Format: {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// companyFacts is the subset of the companyfacts API used here
type companyFacts struct {
	CIK        json.Number                           `json:"cik"`
	EntityName string                                `json:"entityName"`
	Facts      map[string]map[string]json.RawMessage `json:"facts"`
}

// companyConcept is the companyconcept API response
type companyConcept struct {
	CIK      json.Number               `json:"cik"`
	Taxonomy string                    `json:"taxonomy"`
	Tag      string                    `json:"tag"`
	Label    string                    `json:"label"`
	Units    map[string][]conceptValue `json:"units"`
}

// conceptValue is one reported value of a concept
type conceptValue struct {
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
}

// Submissions is the submissions API response
type Submissions struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent RecentFilings `json:"recent"`
	} `json:"filings"`
}

// RecentFilings holds the column-oriented recent filings index
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}
