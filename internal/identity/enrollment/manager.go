// Package enrollment owns the identity to reference-encoding mapping.
//
// Every identity has at most one record. Readers always see fully committed
// records: mutations build a new snapshot and swap it under the write lock.
package enrollment

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/facematch"
)

// Repository persists enrolled records. Implementations must treat
// SaveEncoding as an upsert.
type Repository interface {
	SaveEncoding(ctx context.Context, rec entity.EnrolledRecord) error
	DeleteEncoding(ctx context.Context, id entity.Identity) error
	ListEncodings(ctx context.Context) ([]entity.EnrolledRecord, error)
}

// Artifact is something else stored per identity that has to go when the
// identity is removed, such as the OTP secret or the reference image.
type Artifact struct {
	Name   string
	Remove func(ctx context.Context, id entity.Identity) error
}

// Options configures a Manager. Repository may be nil for a memory-only
// manager. Dimension 0 accepts encodings of any length.
type Options struct {
	Repository Repository
	Artifacts  []Artifact
	Clock      clock.Clocker
	Dimension  int
}

// Manager is safe for concurrent use.
type Manager struct {
	repo      Repository
	artifacts []Artifact
	clock     clock.Clocker
	dim       int

	// wmu serialises writers across repository I/O so readers never wait on it.
	wmu     sync.Mutex
	mu      sync.RWMutex
	records map[entity.Identity]entity.EnrolledRecord
	snap    []entity.EnrolledRecord
}

func NewManager(opts Options) *Manager {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Manager{
		repo:      opts.Repository,
		artifacts: slices.Clone(opts.Artifacts),
		clock:     clk,
		dim:       opts.Dimension,
		records:   map[entity.Identity]entity.EnrolledRecord{},
	}
}

// Load replaces the in-memory records with what the repository holds.
func (m *Manager) Load(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()

	recs, err := m.repo.ListEncodings(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
	}

	records := make(map[entity.Identity]entity.EnrolledRecord, len(recs))
	for _, rec := range recs {
		if m.dim > 0 && len(rec.Encoding) != m.dim {
			slog.WarnContext(ctx, "skip enrolled record with unexpected dimension",
				"identity", rec.Identity, "dimension", len(rec.Encoding))
			continue
		}
		rec.Encoding = rec.Encoding.Clone()
		records[rec.Identity] = rec
	}

	m.mu.Lock()
	m.records = records
	m.rebuild()
	m.mu.Unlock()

	slog.InfoContext(ctx, "enrolled records loaded", "count", len(records))
	return nil
}

// Enroll stores enc for id. It fails with entity.ErrAlreadyEnrolled when id
// already has a record, leaving that record untouched.
func (m *Manager) Enroll(ctx context.Context, id entity.Identity, enc entity.Encoding) error {
	return m.enroll(ctx, id, enc, false)
}

// EnrollOrReplace stores enc for id, replacing any previous record.
func (m *Manager) EnrollOrReplace(ctx context.Context, id entity.Identity, enc entity.Encoding) error {
	return m.enroll(ctx, id, enc, true)
}

func (m *Manager) enroll(ctx context.Context, id entity.Identity, enc entity.Encoding, replace bool) error {
	if len(enc) == 0 || (m.dim > 0 && len(enc) != m.dim) {
		return entity.ErrDimensionMismatch
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()

	if _, ok := m.Lookup(id); ok && !replace {
		return entity.ErrAlreadyEnrolled
	}

	rec := entity.EnrolledRecord{Identity: id, Encoding: enc.Clone(), EnrolledAt: m.clock.Now()}

	if m.repo != nil {
		if err := m.repo.SaveEncoding(ctx, rec); err != nil {
			return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
		}
	}

	m.mu.Lock()
	m.records[id] = rec
	m.rebuild()
	m.mu.Unlock()

	return nil
}

// Remove deletes the record for id, then attempts every artifact removal.
// When some artifact survives, the record is still gone and the returned
// error is a *entity.RemovalError.
func (m *Manager) Remove(ctx context.Context, id entity.Identity) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()

	if _, ok := m.Lookup(id); !ok {
		return entity.ErrNotFound
	}

	if m.repo != nil {
		if err := m.repo.DeleteEncoding(ctx, id); err != nil {
			return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
		}
	}

	m.mu.Lock()
	delete(m.records, id)
	m.rebuild()
	m.mu.Unlock()

	failed := map[string]error{}
	for _, a := range m.artifacts {
		if err := a.Remove(ctx, id); err != nil {
			slog.ErrorContext(ctx, "failed to remove identity artifact", "identity", id, "artifact", a.Name, "error", err)
			failed[a.Name] = err
		}
	}
	if len(failed) > 0 {
		return &entity.RemovalError{Identity: id, Failed: failed}
	}

	return nil
}

// Lookup returns the record enrolled for id.
func (m *Manager) Lookup(id entity.Identity) (entity.EnrolledRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	return rec, ok
}

// Snapshot returns every record ordered by enrollment time, then identity.
// Encodings are shared with the manager and must not be modified.
func (m *Manager) Snapshot() []entity.EnrolledRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.snap)
}

// Candidates is Snapshot shaped for facematch.Evaluate.
func (m *Manager) Candidates() []facematch.Candidate[entity.Identity] {
	return lo.Map(m.Snapshot(), func(r entity.EnrolledRecord, _ int) facematch.Candidate[entity.Identity] {
		return facematch.Candidate[entity.Identity]{Label: r.Identity, Encoding: r.Encoding}
	})
}

// Identities returns the enrolled identities in snapshot order.
func (m *Manager) Identities() []entity.Identity {
	return lo.Map(m.Snapshot(), func(r entity.EnrolledRecord, _ int) entity.Identity { return r.Identity })
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// rebuild must be called with mu held for writing.
func (m *Manager) rebuild() {
	snap := lo.Values(m.records)
	slices.SortFunc(snap, func(a, b entity.EnrolledRecord) int {
		if c := a.EnrolledAt.Compare(b.EnrolledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Identity, b.Identity)
	})
	m.snap = snap
}
