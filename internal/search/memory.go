package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is an in-memory Index implementation. Safe for concurrent use.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryIndex returns an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]Document)}
}

// Put inserts or replaces the projection for doc.ID.
func (x *MemoryIndex) Put(ctx context.Context, doc Document) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs[doc.ID] = doc
	return nil
}

// Remove drops the projection for id.
func (x *MemoryIndex) Remove(ctx context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.docs, id)
	return nil
}

// Query scans the projection in id order, returning the page after cursor.
// The cursor is the last id of the previous page; ordering by id keeps
// repeated sweeps duplicate-free when no writer intervenes.
func (x *MemoryIndex) Query(ctx context.Context, q Query, pageSize int, cursor string) (*Result, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	x.mu.RLock()
	matched := make([]string, 0, len(x.docs))
	for id, doc := range x.docs {
		if matches(doc, q) {
			matched = append(matched, id)
		}
	}
	x.mu.RUnlock()
	sort.Strings(matched)

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(matched, cursor)
		if start < len(matched) && matched[start] == cursor {
			start++
		}
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	res := &Result{IDs: matched[start:end]}
	if end < len(matched) {
		res.AdditionalResults = true
		res.NextCursor = matched[end-1]
	}
	return res, nil
}

func matches(doc Document, q Query) bool {
	if q.Enrolled != nil && doc.Enrolled != *q.Enrolled {
		return false
	}
	if q.CurrentOU != "" && doc.CurrentOU != q.CurrentOU {
		return false
	}
	if q.DeviceModel != "" && doc.DeviceModel != q.DeviceModel {
		return false
	}
	if q.ShelfID != "" && doc.ShelfID != q.ShelfID {
		return false
	}
	if q.Text != "" && !matchesText(doc, q.Text) {
		return false
	}
	return true
}

// matchesText handles one prefixed token (sn:, at:, cid:) or free text
// against the indexed fields.
func matchesText(doc Document, text string) bool {
	if value, ok := strings.CutPrefix(text, "sn:"); ok {
		return doc.SerialNumber == value
	}
	if value, ok := strings.CutPrefix(text, "at:"); ok {
		return doc.AssetTag == value
	}
	if value, ok := strings.CutPrefix(text, "cid:"); ok {
		return doc.ChromeDeviceID == value
	}
	if doc.SerialNumber == text || doc.AssetTag == text || doc.ChromeDeviceID == text {
		return true
	}
	needle := strings.ToLower(text)
	for _, hay := range []string{doc.DeviceModel, doc.CurrentOU, doc.AssignedUser} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}
