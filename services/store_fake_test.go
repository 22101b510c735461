package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"property-scraper/models"
	"property-scraper/storage"
)

// fakeTx buffers writes until Commit. Claimed rows stay locked until the
// transaction ends.
type fakeTx struct {
	storage.Tx
	store  *memStore
	ops    []func()
	locked []int64
	done   bool
}

func (t *fakeTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.store.nextCommitErr(); err != nil {
		t.unlockLocked()
		return err
	}
	for _, op := range t.ops {
		op()
	}
	t.store.commits++
	t.unlockLocked()
	return nil
}

func (t *fakeTx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.rollbacks++
	t.unlockLocked()
	return nil
}

func (t *fakeTx) unlockLocked() {
	for _, id := range t.locked {
		delete(t.store.locks, id)
	}
}

// memStore is an in-memory stand-in for storage.Postgres.
type memStore struct {
	mu sync.Mutex

	nextID     int64
	candidates []models.CandidateURL
	raws       []models.RawRecord
	byExtID    map[int64]models.Property
	noExtID    []models.Property
	locations  map[string]int64
	agencies   map[string]int64
	cities     map[string]int64
	cutoffs    map[int64]*time.Time
	unavail    map[int64]bool
	available  []models.Property
	locks      map[int64]bool

	commitErrs []error
	claimErr   error
	commits    int
	rollbacks  int
	rawInserts int
}

func newMemStore() *memStore {
	return &memStore{
		byExtID:   map[int64]models.Property{},
		locations: map[string]int64{},
		agencies:  map[string]int64{},
		cities:    map[string]int64{},
		cutoffs:   map[int64]*time.Time{},
		unavail:   map[int64]bool{},
		locks:     map[int64]bool{},
	}
}

func (m *memStore) nextCommitErr() error {
	if len(m.commitErrs) == 0 {
		return nil
	}
	err := m.commitErrs[0]
	m.commitErrs = m.commitErrs[1:]
	return err
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) BeginTx(context.Context) (storage.Tx, error) {
	return &fakeTx{store: m}, nil
}

func txOf(q storage.Querier) *fakeTx {
	tx, ok := q.(*fakeTx)
	if !ok {
		panic("memStore: writes must go through a fakeTx")
	}
	return tx
}

func (m *memStore) addCandidates(urls ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range urls {
		m.candidates = append(m.candidates, models.CandidateURL{ID: m.id(), URL: u, CityID: 1})
	}
}

func (m *memStore) InsertCandidates(_ context.Context, c []models.CandidateURL) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, cand := range c {
		dup := false
		for _, existing := range m.candidates {
			if existing.URL == cand.URL {
				dup = true
				break
			}
		}
		if !dup {
			cand.ID = m.id()
			m.candidates = append(m.candidates, cand)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ClaimCandidates(_ context.Context, q storage.Querier, afterID int64, limit int) ([]models.CandidateURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	tx := txOf(q)
	var out []models.CandidateURL
	for _, c := range m.candidates {
		if c.IsProcessed || c.ID <= afterID || m.locks[c.ID] {
			continue
		}
		out = append(out, c)
		m.locks[c.ID] = true
		tx.locked = append(tx.locked, c.ID)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) MarkCandidatesProcessed(_ context.Context, q storage.Querier, ids []int64) error {
	txOf(q).ops = append(txOf(q).ops, func() {
		for i := range m.candidates {
			for _, id := range ids {
				if m.candidates[i].ID == id {
					m.candidates[i].IsProcessed = true
				}
			}
		}
	})
	return nil
}

func (m *memStore) InsertRaw(_ context.Context, q storage.Querier, records []models.RawRecord) (int64, error) {
	tx := txOf(q)
	tx.ops = append(tx.ops, func() {
		for _, r := range records {
			dup := false
			for _, existing := range m.raws {
				if existing.URL == r.URL {
					dup = true
					break
				}
			}
			if !dup {
				r.ID = m.id()
				m.raws = append(m.raws, r)
				m.rawInserts++
			}
		}
	})
	return int64(len(records)), nil
}

func (m *memStore) ClaimRaw(_ context.Context, q storage.Querier, afterID int64, limit int) ([]models.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	tx := txOf(q)
	var out []models.RawRecord
	for _, r := range m.raws {
		if r.IsProcessed || r.ID <= afterID || m.locks[r.ID] {
			continue
		}
		out = append(out, r)
		m.locks[r.ID] = true
		tx.locked = append(tx.locked, r.ID)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) MarkRawProcessed(_ context.Context, q storage.Querier, ids []int64) error {
	txOf(q).ops = append(txOf(q).ops, func() {
		for i := range m.raws {
			for _, id := range ids {
				if m.raws[i].ID == id {
					m.raws[i].IsProcessed = true
				}
			}
		}
	})
	return nil
}

func (m *memStore) UpsertProperties(_ context.Context, q storage.Querier, props []models.Property) (int64, error) {
	seen := map[int64]bool{}
	for _, p := range props {
		if p.ExternalID == nil {
			continue
		}
		if seen[*p.ExternalID] {
			return 0, errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[*p.ExternalID] = true
	}
	txOf(q).ops = append(txOf(q).ops, func() {
		for _, p := range props {
			if p.ExternalID == nil {
				m.noExtID = append(m.noExtID, p)
				continue
			}
			m.byExtID[*p.ExternalID] = p
		}
	})
	return int64(len(props)), nil
}

func (m *memStore) FindOrCreateCity(_ context.Context, name string) (int64, error) {
	return m.findOrCreate(m.cities, name), nil
}

func (m *memStore) FindOrCreateLocation(_ context.Context, name string) (int64, error) {
	return m.findOrCreate(m.locations, name), nil
}

func (m *memStore) FindOrCreateAgency(_ context.Context, _ string, profileURL string) (int64, error) {
	return m.findOrCreate(m.agencies, profileURL), nil
}

func (m *memStore) findOrCreate(table map[string]int64, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := table[key]; ok {
		return id
	}
	id := m.id()
	table[key] = id
	return id
}

func (m *memStore) FreshnessCutoff(_ context.Context, cityID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cutoffs[cityID], nil
}

func (m *memStore) AvailableAfter(_ context.Context, afterID int64, limit int) ([]models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.Slice(m.available, func(i, j int) bool { return m.available[i].ID < m.available[j].ID })
	var out []models.Property
	for _, p := range m.available {
		if p.ID <= afterID || m.unavail[p.ID] {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) MarkUnavailable(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.unavail[id] = true
	}
	return nil
}

func (m *memStore) CountCreatedSince(context.Context, time.Time) (models.DailyCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.DailyCounts{
		URLs:          int64(len(m.candidates)),
		RawProperties: int64(len(m.raws)),
		Properties:    int64(len(m.byExtID) + len(m.noExtID)),
	}, nil
}

func (m *memStore) CountPropertiesByCity(context.Context, time.Time) ([]models.CityCount, error) {
	return []models.CityCount{{City: "Lahore", Count: 12}, {City: "Karachi", Count: 3}}, nil
}

func (m *memStore) processedCandidates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.candidates {
		if c.IsProcessed {
			n++
		}
	}
	return n
}

// fakeFetcher serves fixed bodies by URL. Unknown URLs return err or a generic page.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if b, ok := f.bodies[url]; ok {
		return []byte(b), nil
	}
	return []byte("<html><head><script>x()</script></head><body><h1>" + url + "</h1></body></html>"), nil
}
