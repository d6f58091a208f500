package search

import (
	"context"
	"log"
	"time"

	"github.com/pyle/loaner/internal/device/domain"
)

// applyTimeout bounds a single index write. Entity commits never wait on
// the index, so a slow index only widens the staleness window.
const applyTimeout = 5 * time.Second

type op struct {
	doc    *Document
	remove string
	synced chan struct{}
}

// Indexer applies committed device mutations to the index asynchronously.
// One goroutine consumes a buffered channel, so updates for a device are
// applied in the order they were enqueued. Callers observe eventual
// consistency: a query issued right after a commit may miss it.
type Indexer struct {
	index Index
	ops   chan op
	done  chan struct{}
}

// NewIndexer starts an indexer writing to index. Call Close when done.
func NewIndexer(index Index) *Indexer {
	ix := &Indexer{
		index: index,
		ops:   make(chan op, 256),
		done:  make(chan struct{}),
	}
	go ix.run()
	return ix
}

// DeviceDocument projects a device into its index document.
func DeviceDocument(d *domain.Device) Document {
	return Document{
		ID:             d.ID,
		SerialNumber:   d.SerialNumber,
		AssetTag:       d.AssetTag,
		ChromeDeviceID: d.ChromeDeviceID,
		Enrolled:       d.Enrolled,
		DeviceModel:    d.DeviceModel,
		CurrentOU:      d.CurrentOU,
		ShelfID:        d.ShelfID,
		AssignedUser:   d.AssignedUser,
	}
}

// Upsert enqueues the projection of d. Best-effort and non-blocking for
// the common case; failures are logged, never returned to the mutator.
func (ix *Indexer) Upsert(d *domain.Device) {
	doc := DeviceDocument(d)
	ix.ops <- op{doc: &doc}
}

// Delete enqueues removal of the projection for id.
func (ix *Indexer) Delete(id string) {
	ix.ops <- op{remove: id}
}

// WaitIdle blocks until every update enqueued before the call has been
// applied. Used by shutdown and by tests that close the staleness window.
func (ix *Indexer) WaitIdle() {
	synced := make(chan struct{})
	ix.ops <- op{synced: synced}
	<-synced
}

// Close drains pending updates and stops the worker.
func (ix *Indexer) Close() {
	ix.WaitIdle()
	close(ix.ops)
	<-ix.done
}

// Rebuild replaces the projection for every device in devices. Run at
// startup: the index is a rebuildable projection, not authoritative state.
func Rebuild(ctx context.Context, index Index, devices []*domain.Device) error {
	for _, d := range devices {
		if err := index.Put(ctx, DeviceDocument(d)); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) run() {
	defer close(ix.done)
	for o := range ix.ops {
		if o.synced != nil {
			close(o.synced)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
		var err error
		if o.doc != nil {
			err = ix.index.Put(ctx, *o.doc)
		} else {
			err = ix.index.Remove(ctx, o.remove)
		}
		cancel()
		if err != nil {
			log.Printf("search: index update failed: %v", err)
		}
	}
}
