package models

import "time"

// SearchResult is one web search hit with the fetched page text
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Body    string `json:"body"` // page text truncated on a word boundary, empty when the fetch failed
}

// FilingSection is an extracted section of a filing document
type FilingSection struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
}

// Filing identifies one document in the SEC archive
type Filing struct {
	CIK             string    `json:"cik"`
	AccessionNumber string    `json:"accession_number"`
	Form            string    `json:"form"`
	FilingDate      time.Time `json:"filing_date"`
	ReportDate      time.Time `json:"report_date"`
	PrimaryDocument string    `json:"primary_document"`
	URL             string    `json:"url"`
}

// FundamentalAnalysis is the output of the resolve, match and compute stages
type FundamentalAnalysis struct {
	Company    Company           `json:"company"`
	ConceptMap ConceptMap        `json:"concept_map"`
	Ratios     []RatioRecord     `json:"ratios"`
	Price      *float64          `json:"price,omitempty"` // closing price used for PE_Ratio
	Charts     map[string]string `json:"charts,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Report is a finished analysis as persisted by the report store
type Report struct {
	ID          string    `json:"id" badgerhold:"key"`
	Ticker      string    `json:"ticker" badgerhold:"index"`
	Benchmark   string    `json:"benchmark"`
	CompanyName string    `json:"company_name"`
	CIK         string    `json:"cik"`
	CreatedAt   time.Time `json:"created_at"`

	Fundamentals *FundamentalAnalysis `json:"fundamentals,omitempty"`
	Technicals   *IndicatorSnapshot   `json:"technicals,omitempty"`
	Filing       *Filing              `json:"filing,omitempty"`
	Sections     []FilingSection      `json:"sections,omitempty"`
	Sources      []SearchResult       `json:"sources,omitempty"`
	Narrative    *Narrative           `json:"narrative,omitempty"`

	Markdown     string   `json:"markdown"`
	MarkdownPath string   `json:"markdown_path,omitempty"`
	PDFPath      string   `json:"pdf_path,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`

	// Phases holds the wall time of each pipeline state in milliseconds
	Phases     map[string]int64 `json:"phases_ms,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// Narrative is the LLM-written commentary attached to a report
type Narrative struct {
	Summary       string   `json:"summary" validate:"required"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
	Outlook       string   `json:"outlook"`
}
