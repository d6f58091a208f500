// Package search provides the secondary, eventually-consistent index over
// device fields that backs fleet listing and free-text queries. The index
// is a denormalized projection of the device store, never authoritative:
// direct key lookups must always go to the store.
package search

import "context"

// Document is the projection of a device held by the index.
type Document struct {
	ID             string
	SerialNumber   string
	AssetTag       string
	ChromeDeviceID string
	Enrolled       bool
	DeviceModel    string
	CurrentOU      string
	ShelfID        string
	AssignedUser   string
}

// Query describes a fleet query: any subset of structured equality filters
// plus an optional text query. Text supports prefixed tokens (sn:, at:,
// cid: for serial number, asset tag, and Chrome device id equality);
// anything else matches free text across indexed fields.
type Query struct {
	Text        string
	Enrolled    *bool
	CurrentOU   string
	DeviceModel string
	ShelfID     string
}

// Result is one page of matching device keys.
type Result struct {
	IDs               []string
	AdditionalResults bool
	NextCursor        string
}

// Index answers fleet queries over device projections.
type Index interface {
	// Put inserts or replaces the projection for doc.ID.
	Put(ctx context.Context, doc Document) error
	// Remove drops the projection for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error
	// Query returns up to pageSize matching keys in a stable order,
	// starting after cursor (empty cursor means the first page).
	Query(ctx context.Context, q Query, pageSize int, cursor string) (*Result, error)
}
