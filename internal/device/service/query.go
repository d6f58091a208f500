package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	devicedomain "github.com/pyle/loaner/internal/device/domain"
	"github.com/pyle/loaner/internal/search"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000

	indexQueryAttempts = 3
	indexRetryBackoff  = 50 * time.Millisecond
)

// ShelfCriteria names a shelf by ID or by location.
type ShelfCriteria struct {
	ID       string
	Location string
}

// ListCriteria is a fleet listing request: structured filters, an optional
// free-text search string, and pagination state.
type ListCriteria struct {
	Text        string
	Enrolled    *bool
	CurrentOU   string
	DeviceModel string
	Shelf       *ShelfCriteria
	PageSize    int
	PageToken   string
}

// ListResult is one page of devices plus continuation state.
type ListResult struct {
	Devices           []*devicedomain.Device
	AdditionalResults bool
	NextPageToken     string
}

// Query answers fleet listing and per-user loan queries. Listing reads the
// search projection, which trails committed writes by a short window; the
// per-user view reads the store directly.
type Query struct {
	devices  DeviceRepo
	shelves  ShelfRepo
	index    search.Index
	tokens   *PageTokenCodec
	pageSize int
}

// NewQuery returns a Query service over the given index and store.
func NewQuery(devices DeviceRepo, shelves ShelfRepo, index search.Index, tokens *PageTokenCodec) *Query {
	return &Query{
		devices:  devices,
		shelves:  shelves,
		index:    index,
		tokens:   tokens,
		pageSize: defaultPageSize,
	}
}

// ListDevices returns one page of devices matching c. Walking pages until
// AdditionalResults is false enumerates every match exactly once as long
// as no writes land mid-walk.
func (q *Query) ListDevices(ctx context.Context, c ListCriteria) (*ListResult, error) {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = q.pageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	sq := search.Query{
		Text:        c.Text,
		Enrolled:    c.Enrolled,
		CurrentOU:   c.CurrentOU,
		DeviceModel: c.DeviceModel,
	}
	if c.Shelf != nil {
		shelfID, err := q.resolveShelf(ctx, *c.Shelf)
		if err != nil {
			return nil, err
		}
		sq.ShelfID = shelfID
	}

	fingerprint := queryFingerprint(sq, pageSize)
	cursor := ""
	if c.PageToken != "" {
		parsed, err := q.tokens.Parse(c.PageToken, fingerprint)
		if err != nil {
			return nil, err
		}
		cursor = parsed
	}

	res, err := q.queryIndex(ctx, sq, pageSize, cursor)
	if err != nil {
		return nil, err
	}

	devices, err := q.devices.GetMany(ctx, res.IDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate devices: %w", err)
	}

	out := &ListResult{
		Devices:           devices,
		AdditionalResults: res.AdditionalResults,
	}
	if res.AdditionalResults {
		token, err := q.tokens.Issue(fingerprint, res.NextCursor)
		if err != nil {
			return nil, fmt.Errorf("issue page token: %w", err)
		}
		out.NextPageToken = token
	}
	return out, nil
}

// ListUserDevices returns userEmail's devices, most recent assignment
// first. Reads the authoritative store, never the index.
func (q *Query) ListUserDevices(ctx context.Context, userEmail string) ([]*devicedomain.Device, error) {
	if userEmail == "" {
		return nil, ErrAssigneeRequired
	}
	return q.devices.ListByUser(ctx, userEmail)
}

// ListShelfDevices returns every device placed on the shelf matching c,
// ordered by serial number. Reads the authoritative store, never the
// index; bulk shelf listings must not trail recent placements.
func (q *Query) ListShelfDevices(ctx context.Context, c ShelfCriteria) ([]*devicedomain.Device, error) {
	shelfID, err := q.resolveShelf(ctx, c)
	if err != nil {
		return nil, err
	}
	return q.devices.ListByShelf(ctx, shelfID)
}

// queryIndex retries transient index failures before surfacing them.
func (q *Query) queryIndex(ctx context.Context, sq search.Query, pageSize int, cursor string) (*search.Result, error) {
	var lastErr error
	for attempt := 0; attempt < indexQueryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(indexRetryBackoff):
			}
		}
		res, err := q.index.Query(ctx, sq, pageSize, cursor)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, lastErr)
}

func (q *Query) resolveShelf(ctx context.Context, c ShelfCriteria) (string, error) {
	if c.ID != "" {
		shelf, err := q.shelves.GetByID(ctx, c.ID)
		if err != nil {
			return "", fmt.Errorf("shelf lookup: %w", err)
		}
		if shelf != nil {
			return shelf.ID, nil
		}
	}
	if c.Location != "" {
		shelf, err := q.shelves.GetByLocation(ctx, c.Location)
		if err != nil {
			return "", fmt.Errorf("shelf lookup: %w", err)
		}
		if shelf != nil {
			return shelf.ID, nil
		}
	}
	return "", ErrShelfNotFound
}

// queryFingerprint canonicalizes a query so page tokens are bound to the
// exact filters and page size that produced them.
func queryFingerprint(sq search.Query, pageSize int) string {
	payload, _ := json.Marshal(struct {
		Q        search.Query `json:"q"`
		PageSize int          `json:"ps"`
	}{sq, pageSize})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
