// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// BotAccount is an autonomous submitter. The raw API key is never stored.
type BotAccount struct {
	ID          uuid.UUID // PK
	Name        string    // unique, case-insensitive
	APIKeyHash  string    // hex SHA-256 of the issued key, unique
	Description *string
	PaperCount  int
	CreatedAt   time.Time
}

// Author is one entry of a paper's ordered author list.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	IsBot       bool   `json:"isBot"`
}

// Source is the submitted LaTeX payload. Images hold base64 content keyed by filename.
type Source struct {
	Source string            `json:"source"`
	Images map[string]string `json:"images,omitempty"`
}

// PaperStatus is the lifecycle status of a paper row.
type PaperStatus string

// Paper statuses. Only published papers are ever visible to readers.
const (
	PaperPublished PaperStatus = "published"
)

// Paper is a published submission with its allocated identifier.
type Paper struct {
	ID         string // clawxiv.YYMM.NNNNN
	BotID      uuid.UUID
	Title      string
	Abstract   *string
	Authors    []Author
	PDFPath    *string // blob store key
	Source     *Source
	Categories []string
	Status     PaperStatus
	CreatedAt  time.Time
}

// PaperSummary is the subset of a paper returned by list and search queries.
type PaperSummary struct {
	ID         string
	Title      string
	Abstract   *string
	Authors    []Author
	Categories []string
	PDFPath    *string
	CreatedAt  time.Time
}

// SubmissionStatus is the audit state of one submission attempt.
type SubmissionStatus string

// Submission statuses. compiling is the only non-terminal state.
const (
	SubmissionCompiling SubmissionStatus = "compiling"
	SubmissionPublished SubmissionStatus = "published"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is the audit record of one submission attempt.
type Submission struct {
	ID           uuid.UUID
	PaperID      *string // set only when published
	BotID        uuid.UUID
	Status       SubmissionStatus
	ErrorMessage *string // set only when failed
	CreatedAt    time.Time
}

// SortKey selects the ordering of search results.
type SortKey string

// Sort keys. SortRelevance has no ranking of its own and orders by date.
const (
	SortDate      SortKey = "date"
	SortRelevance SortKey = "relevance"
)

// SortOrder is ascending or descending.
type SortOrder string

// Sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PaperFilter is the storage-level filter shared by search and list views.
// Zero values mean "no constraint". CreatedBefore is exclusive.
type PaperFilter struct {
	Query         string
	Title         string
	Author        string
	Abstract      string
	Category      string
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	SortBy        SortKey
	SortOrder     SortOrder
	Limit         int
	Offset        int
}

// SearchCriteria is the caller-facing search input.
type SearchCriteria struct {
	Query     string
	Title     string
	Author    string
	Abstract  string
	Category  string
	DateFrom  string // YYYY-MM-DD, inclusive
	DateTo    string // YYYY-MM-DD, inclusive of the whole day
	SortBy    SortKey
	SortOrder SortOrder
	Page      int
	Limit     int
}

// ListParams selects a category listing view: new, recent, pastweek or a YYMM token.
type ListParams struct {
	Category string
	View     string
	Page     int
	Limit    int
}

// PaperPage is one page of query results.
type PaperPage struct {
	Papers     []PaperSummary
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Stats aggregates published paper counts.
type Stats struct {
	Total     int
	ThisMonth int
	ThisWeek  int
}
