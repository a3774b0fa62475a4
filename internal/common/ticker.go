// Package common provides shared utilities across the application.
package common

import (
	"regexp"
	"strings"
)

// Ticker represents a parsed symbol. Equities are assumed to trade on a US
// exchange because fundamentals come from SEC EDGAR; index symbols keep the
// Yahoo "^" convention (e.g. "^GSPC").
type Ticker struct {
	// Exchange is the exchange code when given (e.g. "NYSE"), otherwise "US"
	Exchange string
	// Code is the upper-case symbol without exchange or index prefix (e.g. "BRK.B", "GSPC")
	Code string
	// Index is true for index symbols
	Index bool
	// Raw is the original ticker string
	Raw string
}

// IndexToEODHD maps index codes to EODHD index symbols.
var IndexToEODHD = map[string]string{
	"GSPC": "GSPC.INDX", // S&P 500
	"DJI":  "DJI.INDX",  // Dow Jones Industrial Average
	"IXIC": "IXIC.INDX", // NASDAQ Composite
	"NDX":  "NDX.INDX",  // NASDAQ 100
	"RUT":  "RUT.INDX",  // Russell 2000
}

// ParseTicker parses a ticker string.
// Supports formats:
//   - "AAPL" -> Exchange="US", Code="AAPL"
//   - "nyse:brk.b" -> Exchange="NYSE", Code="BRK.B"
//   - "^GSPC" -> Index, Code="GSPC"
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if strings.HasPrefix(ticker, "^") {
		return Ticker{Exchange: "INDX", Code: strings.ToUpper(ticker[1:]), Index: true, Raw: ticker}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(ticker[:idx]),
			Code:     strings.ToUpper(ticker[idx+1:]),
			Raw:      ticker,
		}
	}

	return Ticker{Exchange: "US", Code: strings.ToUpper(ticker), Raw: ticker}
}

// String returns the display symbol
func (t Ticker) String() string {
	if t.Index {
		return "^" + t.Code
	}
	return t.Code
}

// SECSymbol returns the symbol as listed in the SEC company registry,
// which writes share classes with a dash ("BRK-B").
func (t Ticker) SECSymbol() string {
	return strings.ReplaceAll(t.Code, ".", "-")
}

// YahooSymbol returns the Yahoo Finance chart symbol.
func (t Ticker) YahooSymbol() string {
	if t.Index {
		return "^" + t.Code
	}
	return strings.ReplaceAll(t.Code, ".", "-")
}

// EODHDSymbol returns the EODHD API symbol.
// Example: "BRK.B" -> "BRK-B.US", "^GSPC" -> "GSPC.INDX"
func (t Ticker) EODHDSymbol() string {
	if t.Code == "" {
		return ""
	}
	if t.Index {
		if sym, ok := IndexToEODHD[t.Code]; ok {
			return sym
		}
		return t.Code + ".INDX"
	}
	return strings.ReplaceAll(t.Code, ".", "-") + ".US"
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileSafe returns the symbol reduced to characters safe in file names.
func (t Ticker) FileSafe() string {
	return unsafeFileChars.ReplaceAllString(t.Code, "_")
}

// ParseTickers parses a list of ticker strings, skipping empties.
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if parsed := ParseTicker(t); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}
