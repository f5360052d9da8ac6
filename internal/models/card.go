package models

import (
	"time"
)

// OracleData is the resolution result for a single card name. OracleID is
// empty when the name did not resolve to a card.
type OracleData struct {
	OracleID  string   `json:"oracleId,omitempty"`
	ImageURLs []string `json:"imageUrls"`
	EURPrice  *float64 `json:"eurPrice,omitempty"`
}

// Resolved reports whether the lookup produced a card identity.
func (d OracleData) Resolved() bool {
	return d.OracleID != ""
}

// ImageURL returns the front face image, or "" when none is known.
func (d OracleData) ImageURL() string {
	if len(d.ImageURLs) == 0 {
		return ""
	}
	return d.ImageURLs[0]
}

// Unresolved returns an empty result with a non-nil image list so it
// serializes as "imageUrls": [].
func Unresolved() OracleData {
	return OracleData{ImageURLs: []string{}}
}

// NamedOracleData is one row of a batch resolution response.
type NamedOracleData struct {
	Name string `json:"name"`
	OracleData
}

// BulkMeta is the persisted marker for the local copy of the bulk dataset.
type BulkMeta struct {
	UpdatedAt    time.Time `json:"updatedAt"`
	DownloadedAt time.Time `json:"downloadedAt"`
}
