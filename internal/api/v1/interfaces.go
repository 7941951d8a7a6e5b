// Package v1 is the dashboard read API: typed, documented operations over
// the sessions, events, funnels, and logs the ingestion pipeline persists.
// The write side (beacon and log ingestion) lives in internal/ingest with a
// hand-rolled wire contract; everything here is read-only.
package v1

import (
	"github.com/summitroofing/beacon/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Sessions() domain.SessionRepository
	Events() domain.EventRepository
	Funnels() domain.FunnelRepository
	Logs() domain.LogRepository
}
