package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	auditdomain "github.com/pyle/loaner/internal/audit/domain"
	devicedomain "github.com/pyle/loaner/internal/device/domain"
	"github.com/pyle/loaner/internal/device/repository"
	"github.com/pyle/loaner/internal/directory"
	policyengine "github.com/pyle/loaner/internal/policy/engine"
	"github.com/pyle/loaner/internal/search"
	settingsdomain "github.com/pyle/loaner/internal/settings/domain"
	shelfdomain "github.com/pyle/loaner/internal/shelf/domain"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// memDeviceRepo is an in-memory DeviceRepo double.
type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*devicedomain.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: make(map[string]*devicedomain.Device)}
}

func copyDevice(d *devicedomain.Device) *devicedomain.Device {
	out := *d
	return &out
}

func (r *memDeviceRepo) GetByID(ctx context.Context, id string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[id]; ok {
		return copyDevice(d), nil
	}
	return nil, nil
}

func (r *memDeviceRepo) getByField(field func(*devicedomain.Device) string, value string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if field(d) == value {
			return copyDevice(d), nil
		}
	}
	return nil, nil
}

func (r *memDeviceRepo) GetBySerialNumber(ctx context.Context, serial string) (*devicedomain.Device, error) {
	return r.getByField(func(d *devicedomain.Device) string { return d.SerialNumber }, serial)
}

func (r *memDeviceRepo) GetByAssetTag(ctx context.Context, assetTag string) (*devicedomain.Device, error) {
	return r.getByField(func(d *devicedomain.Device) string { return d.AssetTag }, assetTag)
}

func (r *memDeviceRepo) GetByChromeDeviceID(ctx context.Context, chromeDeviceID string) (*devicedomain.Device, error) {
	return r.getByField(func(d *devicedomain.Device) string { return d.ChromeDeviceID }, chromeDeviceID)
}

func (r *memDeviceRepo) GetMany(ctx context.Context, ids []string) ([]*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*devicedomain.Device, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.devices[id]; ok {
			out = append(out, copyDevice(d))
		}
	}
	return out, nil
}

func (r *memDeviceRepo) ListByShelf(ctx context.Context, shelfID string) ([]*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*devicedomain.Device
	for _, d := range r.devices {
		if d.ShelfID == shelfID {
			out = append(out, copyDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (r *memDeviceRepo) ListByUser(ctx context.Context, userEmail string) ([]*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*devicedomain.Device
	for _, d := range r.devices {
		if d.AssignedUser == userEmail {
			out = append(out, copyDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].AssignmentDate, out[j].AssignmentDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out, nil
}

func (r *memDeviceRepo) Create(ctx context.Context, d *devicedomain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.ID] = copyDevice(d)
	return nil
}

func (r *memDeviceRepo) Mutate(ctx context.Context, id string, fn func(*devicedomain.Device) error) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := copyDevice(d)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.devices[id] = next
	return copyDevice(next), nil
}

// fakeDirectory is a directory.Client double recording org-unit moves.
type fakeDirectory struct {
	mu      sync.Mutex
	records map[string]*directory.DeviceRecord
	names   map[string]string

	getErr  error
	moveErr error
	nameErr error
	moves   []string // "chromeDeviceID->orgUnit"
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		records: make(map[string]*directory.DeviceRecord),
		names:   make(map[string]string),
	}
}

func (f *fakeDirectory) GetDevice(ctx context.Context, serialNumber string) (*directory.DeviceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[serialNumber]
	if !ok {
		return nil, directory.ErrDeviceNotFound
	}
	out := *rec
	return &out, nil
}

func (f *fakeDirectory) MoveDeviceToOrgUnit(ctx context.Context, chromeDeviceID, orgUnit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, chromeDeviceID+"->"+orgUnit)
	return nil
}

func (f *fakeDirectory) GivenName(ctx context.Context, userEmail string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.names[userEmail], nil
}

// stubSettings returns fixed loan settings.
type stubSettings struct {
	settings settingsdomain.LoanSettings
	err      error
}

func (s *stubSettings) GetLoanSettings(ctx context.Context, defaults settingsdomain.LoanSettings) (*settingsdomain.LoanSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.settings
	return &out, nil
}

// stubPolicy returns a canned extension decision.
type stubPolicy struct {
	allowed bool
	reason  string
	err     error
}

func (p *stubPolicy) EvaluateExtend(ctx context.Context, settings *settingsdomain.LoanSettings, device *devicedomain.Device, newDueDate, now time.Time) (policyengine.ExtendResult, error) {
	if p.err != nil {
		return policyengine.ExtendResult{}, p.err
	}
	return policyengine.ExtendResult{Allowed: p.allowed, DeniedReason: p.reason}, nil
}

// captureAudit records audit events and serves them back newest first.
type captureAudit struct {
	mu     sync.Mutex
	events []*auditdomain.Event
}

func (a *captureAudit) LogEvent(ctx context.Context, action, deviceID, actor, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, &auditdomain.Event{
		Action:   action,
		DeviceID: deviceID,
		Actor:    actor,
		Metadata: metadata,
	})
}

func (a *captureAudit) History(ctx context.Context, deviceID string, limit, offset int32) ([]*auditdomain.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var matched []*auditdomain.Event
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].DeviceID == deviceID {
			matched = append(matched, a.events[i])
		}
	}
	if int(offset) >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if int(limit) < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (a *captureAudit) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

// recordIndexer records device ids handed to the search projection.
type recordIndexer struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
}

func (r *recordIndexer) Upsert(d *devicedomain.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, d.ID)
}

func (r *recordIndexer) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, id)
}

// memShelfRepo is an in-memory ShelfRepo double.
type memShelfRepo struct {
	shelves map[string]*shelfdomain.Shelf
}

func (r *memShelfRepo) GetByID(ctx context.Context, id string) (*shelfdomain.Shelf, error) {
	if s, ok := r.shelves[id]; ok {
		out := *s
		return &out, nil
	}
	return nil, nil
}

func (r *memShelfRepo) GetByLocation(ctx context.Context, location string) (*shelfdomain.Shelf, error) {
	for _, s := range r.shelves {
		if s.Location == location {
			out := *s
			return &out, nil
		}
	}
	return nil, nil
}

var testOrgUnits = OrgUnits{
	Default:    "/managed",
	Guest:      "/managed/guest",
	Unenrolled: "/",
}

type fixture struct {
	repo     *memDeviceRepo
	dir      *fakeDirectory
	settings *stubSettings
	policy   *stubPolicy
	audit    *captureAudit
	indexer  *recordIndexer
	index    *search.MemoryIndex
	svc      *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newMemDeviceRepo(),
		dir:  newFakeDirectory(),
		settings: &stubSettings{settings: settingsdomain.LoanSettings{
			AllowGuestMode:          true,
			LoanDurationDays:        7,
			MaximumLoanDurationDays: 14,
		}},
		policy:  &stubPolicy{allowed: true},
		audit:   &captureAudit{},
		indexer: &recordIndexer{},
		index:   search.NewMemoryIndex(),
	}
	f.svc = NewLifecycle(
		f.repo,
		f.dir,
		f.settings,
		settingsdomain.LoanSettings{LoanDurationDays: 7, MaximumLoanDurationDays: 14},
		f.policy,
		f.audit,
		nil,
		f.indexer,
		f.index,
		testOrgUnits,
	)
	f.svc.nowF = func() time.Time { return fixedNow }
	return f
}

// seedDevice stores a baseline enrolled device and returns a copy.
func (f *fixture) seedDevice(t *testing.T, mutate func(*devicedomain.Device)) *devicedomain.Device {
	t.Helper()
	d := &devicedomain.Device{
		ID:             "dev-1",
		SerialNumber:   "6789",
		AssetTag:       "at-6789",
		ChromeDeviceID: "chrome-6789",
		Enrolled:       true,
		DeviceModel:    "HP Chromebook 13 G1",
		CurrentOU:      testOrgUnits.Default,
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
	if mutate != nil {
		mutate(d)
	}
	if err := f.repo.Create(context.Background(), d); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	return copyDevice(d)
}

func (f *fixture) stored(t *testing.T, id string) *devicedomain.Device {
	t.Helper()
	d, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if d == nil {
		t.Fatalf("device %s not in repo", id)
	}
	return d
}

func assignTo(user string, at time.Time) func(*devicedomain.Device) {
	return func(d *devicedomain.Device) {
		d.Assign(user, at, 7*24*time.Hour)
	}
}
