package signage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/nerrad567/signage-core/internal/infrastructure/database"
	_ "github.com/nerrad567/signage-core/migrations"
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        t.TempDir() + "/signage.db",
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// seedView creates a display and one view on store.
func seedView(t *testing.T, store *Store) (*Display, *View) {
	t.Helper()
	ctx := context.Background()

	d := &Display{Name: "Lobby", ClientID: "lobby-" + newID(""), Active: true}
	if err := store.Displays.Create(ctx, d); err != nil {
		t.Fatalf("creating display: %v", err)
	}
	v := &View{Name: "Main", Columns: 4, Rows: 3, DisplayID: d.ID, ScreenType: "landscape", Position: 1}
	if err := store.Views.Create(ctx, v); err != nil {
		t.Fatalf("creating view: %v", err)
	}
	return d, v
}

// recorder is shared by the mock repositories so tests can assert the
// order of calls across entities.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (r *recorder) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if err, ok := r.failOn[call]; ok {
		return err
	}
	return nil
}

func (r *recorder) getCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// index returns the position of call in the log, or -1.
func (r *recorder) index(call string) int {
	for i, c := range r.getCalls() {
		if c == call {
			return i
		}
	}
	return -1
}

// count returns how many recorded calls start with prefix.
func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.getCalls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// memStore is an in-memory Store whose repositories log every call.
type memStore struct {
	rec *recorder

	mu       sync.Mutex
	seq      int
	displays map[string]Display
	views    map[string]View
	slots    map[string]ContentSlot
	order    []string // slot IDs in creation order
	options  map[string]OptionMap
}

func newMemStore() *memStore {
	return &memStore{
		rec:      &recorder{failOn: map[string]error{}},
		displays: map[string]Display{},
		views:    map[string]View{},
		slots:    map[string]ContentSlot{},
		options:  map[string]OptionMap{},
	}
}

func (m *memStore) store() *Store {
	return &Store{
		Displays: memDisplays{m},
		Views:    memViews{m},
		Slots:    memSlots{m},
		Options:  memOptions{m},
	}
}

// nextID returns an ID in a namespace that seeded fixtures never use.
func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%snew-%d", prefix, m.seq)
}

// putSlot seeds a slot without recording a call.
func (m *memStore) putSlot(id, viewID, componentType string, opts OptionMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[id] = ContentSlot{ID: id, ViewID: viewID, ComponentType: componentType}
	m.order = append(m.order, id)
	if opts != nil {
		m.options[id] = opts
	}
}

type memDisplays struct{ m *memStore }

func (r memDisplays) Create(_ context.Context, d *Display) error {
	if err := r.m.rec.record("displays.create"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d.ID == "" {
		d.ID = r.m.nextID(displayIDPrefix)
	}
	r.m.displays[d.ID] = *d
	return nil
}

func (r memDisplays) GetByID(_ context.Context, id string) (*Display, error) {
	if err := r.m.rec.record("displays.get " + id); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.displays[id]
	if !ok {
		return nil, ErrDisplayNotFound
	}
	return &d, nil
}

func (r memDisplays) GetByClientID(_ context.Context, clientID string) (*Display, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.displays {
		if d.ClientID == clientID {
			return &d, nil
		}
	}
	return nil, ErrDisplayNotFound
}

func (r memDisplays) List(context.Context) ([]Display, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []Display{}
	for _, d := range r.m.displays {
		out = append(out, d)
	}
	return out, nil
}

func (r memDisplays) Update(_ context.Context, d *Display) error {
	if err := r.m.rec.record("displays.update " + d.ID); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.displays[d.ID]; !ok {
		return ErrDisplayNotFound
	}
	r.m.displays[d.ID] = *d
	return nil
}

func (r memDisplays) Delete(_ context.Context, id string) error {
	if err := r.m.rec.record("displays.delete " + id); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.displays[id]; !ok {
		return ErrDisplayNotFound
	}
	delete(r.m.displays, id)
	return nil
}

type memViews struct{ m *memStore }

func (r memViews) Create(_ context.Context, v *View) error {
	if err := r.m.rec.record("views.create"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if v.ID == "" {
		v.ID = r.m.nextID(viewIDPrefix)
	}
	r.m.views[v.ID] = *v
	return nil
}

func (r memViews) GetByID(_ context.Context, id string) (*View, error) {
	if err := r.m.rec.record("views.get " + id); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return &v, nil
}

func (r memViews) List(context.Context) ([]View, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []View{}
	for _, v := range r.m.views {
		out = append(out, v)
	}
	return out, nil
}

func (r memViews) ListByDisplay(_ context.Context, displayID string) ([]View, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []View{}
	for _, v := range r.m.views {
		if v.DisplayID == displayID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r memViews) CountByScreenType(_ context.Context, displayID, screenType string) (int, error) {
	if err := r.m.rec.record("views.count " + displayID + "/" + screenType); err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, v := range r.m.views {
		if v.DisplayID == displayID && v.ScreenType == screenType {
			n++
		}
	}
	return n, nil
}

func (r memViews) Update(_ context.Context, v *View) error {
	if err := r.m.rec.record("views.update " + v.ID); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.views[v.ID]; !ok {
		return ErrViewNotFound
	}
	r.m.views[v.ID] = *v
	return nil
}

func (r memViews) Delete(_ context.Context, id string) error {
	if err := r.m.rec.record("views.delete " + id); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.views[id]; !ok {
		return ErrViewNotFound
	}
	delete(r.m.views, id)
	return nil
}

type memSlots struct{ m *memStore }

func (r memSlots) Create(_ context.Context, s *ContentSlot) error {
	if err := r.m.rec.record("slots.create " + s.ComponentType); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s.ID == "" {
		s.ID = r.m.nextID(slotIDPrefix)
	}
	r.m.slots[s.ID] = *s
	r.m.order = append(r.m.order, s.ID)
	return nil
}

func (r memSlots) GetByID(_ context.Context, id string) (*ContentSlot, error) {
	if err := r.m.rec.record("slots.get " + id); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r memSlots) ListByView(_ context.Context, viewID string) ([]ContentSlot, error) {
	if err := r.m.rec.record("slots.list " + viewID); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []ContentSlot{}
	for _, id := range r.m.order {
		if s, ok := r.m.slots[id]; ok && s.ViewID == viewID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r memSlots) Update(_ context.Context, s *ContentSlot) error {
	if err := r.m.rec.record("slots.update " + s.ID); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.slots[s.ID]; !ok {
		return ErrSlotNotFound
	}
	r.m.slots[s.ID] = *s
	return nil
}

func (r memSlots) Delete(_ context.Context, id string) error {
	if err := r.m.rec.record("slots.delete " + id); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	if len(r.m.options[id]) > 0 {
		return fmt.Errorf("%w: slot %s still has options", ErrStorage, id)
	}
	delete(r.m.slots, id)
	return nil
}

type memOptions struct{ m *memStore }

func (r memOptions) ListForSlot(_ context.Context, slotID string) (OptionMap, error) {
	if err := r.m.rec.record("options.list " + slotID); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := OptionMap{}
	for k, v := range r.m.options[slotID] {
		out[k] = v
	}
	return out, nil
}

func (r memOptions) Create(_ context.Context, slotID, key string, value OptionValue) error {
	if err := r.m.rec.record("options.create " + slotID + "/" + key); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.slots[slotID]; !ok {
		return fmt.Errorf("%w: slot %s missing", ErrStorage, slotID)
	}
	if r.m.options[slotID] == nil {
		r.m.options[slotID] = OptionMap{}
	}
	if _, dup := r.m.options[slotID][key]; dup {
		return errors.New("duplicate option")
	}
	r.m.options[slotID][key] = value
	return nil
}

func (r memOptions) Update(_ context.Context, slotID, key string, value OptionValue) error {
	if err := r.m.rec.record("options.update " + slotID + "/" + key); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.options[slotID][key]; !ok {
		return ErrOptionNotFound
	}
	r.m.options[slotID][key] = value
	return nil
}

func (r memOptions) Delete(_ context.Context, slotID, key string) error {
	if err := r.m.rec.record("options.delete " + slotID + "/" + key); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.options[slotID][key]; !ok {
		return ErrOptionNotFound
	}
	delete(r.m.options[slotID], key)
	return nil
}

func (r memOptions) DeleteAllForSlot(_ context.Context, slotID string) (int64, error) {
	if err := r.m.rec.record("options.deleteAll " + slotID); err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := int64(len(r.m.options[slotID]))
	delete(r.m.options, slotID)
	return n, nil
}

// mockEventSink captures published events.
type mockEventSink struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	Kind    EventKind
	Payload any
}

func (m *mockEventSink) Publish(_ context.Context, kind EventKind, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{Kind: kind, Payload: payload})
	return m.err
}

func (m *mockEventSink) getEvents() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// mockLogger captures log messages by level.
type mockLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *mockLogger) Debug(string, ...any) {}
func (l *mockLogger) Info(string, ...any)  {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) counts() (warnings, errs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings), len(l.errors)
}
