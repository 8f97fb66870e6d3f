package models

import (
	"time"

	"github.com/dcabrera/revolico-scraper/internal/protection"
)

// Condition of the advertised item.
const (
	ConditionNew  = "new"
	ConditionUsed = "used"
)

// ListingCandidate is a URL discovered on an index page. It is ephemeral:
// created during index parsing and consumed immediately by the detail fetch.
type ListingCandidate struct {
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// FetchAttempt is the immutable record of one try against one URL under one
// strategy.
type FetchAttempt struct {
	URL        string             `json:"url"`
	StrategyID string             `json:"strategy_id"`
	Attempt    int                `json:"attempt"`
	HTTPStatus int                `json:"http_status,omitempty"`
	Verdict    protection.Verdict `json:"verdict"`
	ElapsedMs  int64              `json:"elapsed_ms"`
	Error      string             `json:"error,omitempty"`
}

// FetchResult is the outcome of the strategy engine for one target.
// Invariant: Success implies FinalVerdict == clean and Content non-empty.
type FetchResult struct {
	Success      bool               `json:"success"`
	FinalVerdict protection.Verdict `json:"final_verdict"`
	Attempts     []FetchAttempt     `json:"attempts"`
	Content      string             `json:"-"`
	URL          string             `json:"url"`
	StrategyUsed string             `json:"strategy_used,omitempty"`
}

// ExtractedListing is the structured output of the listing extractor.
// Degraded fields are explicitly nil/default so consumers can distinguish
// "not found" from "not attempted".
type ExtractedListing struct {
	SourceURL         string    `json:"source_url"`
	ExternalID        string    `json:"external_id,omitempty"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Price             *float64  `json:"price"`
	Currency          string    `json:"currency"`
	PhoneNumbers      []string  `json:"phone_numbers"`
	SellerName        *string   `json:"seller_name"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	ImageURLs         []string  `json:"image_urls"`
	Category          string    `json:"category,omitempty"`
	Location          string    `json:"location,omitempty"`
	Condition         string    `json:"condition"`
	ScrapedAt         time.Time `json:"scraped_at"`
}

// RunSummary describes one scraping run: counts, duration and the full
// per-URL attempt trail.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Duration      time.Duration  `json:"duration_ns"`
	WorkingURL    string         `json:"working_url,omitempty"`
	StrategyUsed  string         `json:"strategy_used,omitempty"`
	ListingsFound int            `json:"listings_found"`
	PhonesFound   int            `json:"phones_found"`
	Attempts      []FetchAttempt `json:"attempts"`
	Errors        []string       `json:"errors,omitempty"`
}

// RunResult bundles the extracted records with the run summary for hand-off
// to the persistence collaborator.
type RunResult struct {
	Summary  RunSummary         `json:"summary"`
	Listings []ExtractedListing `json:"listings"`
}
