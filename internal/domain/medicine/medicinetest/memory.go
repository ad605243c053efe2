// Package medicinetest provides an in-memory medicine store for tests.
package medicinetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/pkg/pagination"
)

// Store holds batches and units and implements both repositories plus a
// transaction runner that restores a snapshot when fn fails.
type Store struct {
	mu        sync.Mutex
	medicines map[uuid.UUID]*medicine.Medicine
	units     map[uuid.UUID]*medicine.Unit
	scans     map[uuid.UUID]int

	// FailUnitAt makes the n-th unit insert fail (1-based). Zero disables it.
	FailUnitAt int
	unitWrites int
}

func NewStore() *Store {
	return &Store{
		medicines: make(map[uuid.UUID]*medicine.Medicine),
		units:     make(map[uuid.UUID]*medicine.Unit),
		scans:     make(map[uuid.UUID]int),
	}
}

func (s *Store) Medicines() medicine.Repository { return (*medicineRepo)(s) }
func (s *Store) Units() medicine.UnitRepository { return (*unitRepo)(s) }

// Seed stores m as-is, deriving its units when withUnits is set.
func (s *Store) Seed(m *medicine.Medicine, withUnits bool) []*medicine.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.QRPayload == "" {
		m.QRPayload = medicine.QRCode{Contract: m.ContractAddress, TokenID: m.TokenID, Batch: m.BatchNumber}.String()
	}
	s.medicines[m.ID] = m
	if !withUnits {
		return nil
	}
	units := medicine.BuildUnits(m)
	for _, u := range units {
		u.ID = uuid.New()
		s.units[u.ID] = u
	}
	return units
}

// SetScanCount fixes the scan total reported for a batch by Stats.
func (s *Store) SetScanCount(id uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans[id] = n
}

func (s *Store) MedicineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.medicines)
}

func (s *Store) UnitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	meds := make(map[uuid.UUID]*medicine.Medicine, len(s.medicines))
	for k, v := range s.medicines {
		meds[k] = v
	}
	units := make(map[uuid.UUID]*medicine.Unit, len(s.units))
	for k, v := range s.units {
		units[k] = v
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.medicines, s.units = meds, units
		s.mu.Unlock()
		return err
	}
	return nil
}

// -- Medicine repository --

type medicineRepo Store

func (r *medicineRepo) Create(_ context.Context, m *medicine.Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.medicines {
		if e.TokenID == m.TokenID || e.QRPayload == m.QRPayload {
			return medicine.ErrDuplicate
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt, m.UpdatedAt = time.Now(), time.Now()
	cp := *m
	r.medicines[m.ID] = &cp
	return nil
}

func (r *medicineRepo) find(match func(*medicine.Medicine) bool) (*medicine.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *medicine.Medicine
	for _, m := range r.medicines {
		if match(m) && (best == nil || m.CreatedAt.After(best.CreatedAt)) {
			best = m
		}
	}
	if best == nil {
		return nil, medicine.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *medicineRepo) GetByID(_ context.Context, id uuid.UUID) (*medicine.Medicine, error) {
	return r.find(func(m *medicine.Medicine) bool { return m.ID == id })
}

func (r *medicineRepo) GetByQR(_ context.Context, payload string) (*medicine.Medicine, error) {
	return r.find(func(m *medicine.Medicine) bool { return m.QRPayload == payload })
}

func (r *medicineRepo) GetByTokenID(_ context.Context, tokenID string) (*medicine.Medicine, error) {
	return r.find(func(m *medicine.Medicine) bool { return m.TokenID == tokenID })
}

func (r *medicineRepo) GetByBatchNumber(_ context.Context, batch string) (*medicine.Medicine, error) {
	return r.find(func(m *medicine.Medicine) bool { return m.BatchNumber == batch })
}

func (r *medicineRepo) ExistsForManufacturer(_ context.Context, manufacturerID uuid.UUID, batch string) (bool, error) {
	_, err := r.find(func(m *medicine.Medicine) bool {
		return m.ManufacturerID == manufacturerID && m.BatchNumber == batch
	})
	return err == nil, nil
}

func (r *medicineRepo) ListByManufacturer(_ context.Context, manufacturerID uuid.UUID, limit, offset int) ([]*medicine.Medicine, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*medicine.Medicine
	for _, m := range r.medicines {
		if manufacturerID == uuid.Nil || m.ManufacturerID == manufacturerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pagination.Window(out, limit, offset), len(out), nil
}

func (r *medicineRepo) Stats(_ context.Context, manufacturerID uuid.UUID) (*medicine.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st medicine.Stats
	batches := map[string]bool{}
	for _, m := range r.medicines {
		if m.ManufacturerID != manufacturerID {
			continue
		}
		st.TotalMedicines++
		batches[m.BatchNumber] = true
		st.TotalScans += r.scans[m.ID]
	}
	st.TotalBatches = len(batches)
	return &st, nil
}

func (r *medicineRepo) update(id uuid.UUID, fn func(m *medicine.Medicine)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.medicines[id]
	if !ok {
		return medicine.ErrNotFound
	}
	cp := *m
	fn(&cp)
	cp.UpdatedAt = time.Now()
	r.medicines[id] = &cp
	return nil
}

func (r *medicineRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return r.update(id, func(m *medicine.Medicine) { m.IsActive = active })
}

func (r *medicineRepo) SetRecalled(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(m *medicine.Medicine) { m.IsRecalled, m.IsActive = true, false })
}

func (r *medicineRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.medicines[id]; !ok {
		return medicine.ErrNotFound
	}
	delete(r.medicines, id)
	for uid, u := range r.units {
		if u.MedicineID == id {
			delete(r.units, uid)
		}
	}
	return nil
}

// -- Unit repository --

type unitRepo Store

func (r *unitRepo) Create(_ context.Context, u *medicine.Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unitWrites++
	if r.FailUnitAt > 0 && r.unitWrites == r.FailUnitAt {
		return medicine.ErrDuplicate
	}
	if _, ok := r.medicines[u.MedicineID]; !ok {
		return medicine.ErrNotFound
	}
	for _, e := range r.units {
		if e.TokenID == u.TokenID || e.QRPayload == u.QRPayload {
			return medicine.ErrDuplicate
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	r.units[u.ID] = &cp
	return nil
}

func (r *unitRepo) find(match func(*medicine.Unit) bool) (*medicine.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, medicine.ErrUnitNotFound
}

func (r *unitRepo) GetByQR(_ context.Context, payload string) (*medicine.Unit, error) {
	return r.find(func(u *medicine.Unit) bool { return u.QRPayload == payload })
}

func (r *unitRepo) GetByTokenID(_ context.Context, tokenID string) (*medicine.Unit, error) {
	return r.find(func(u *medicine.Unit) bool { return u.TokenID == tokenID })
}

func (r *unitRepo) ListByMedicine(_ context.Context, medicineID uuid.UUID, limit, offset int) ([]*medicine.Unit, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*medicine.Unit
	for _, u := range r.units {
		if u.MedicineID == medicineID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return pagination.Window(out, limit, offset), len(out), nil
}
