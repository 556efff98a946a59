// Package memstore is an in-process lifecycle.Store. A single mutex
// serializes every call; Atomic restores a snapshot when fn fails, so it
// gives the same all-or-nothing outcome as a database transaction.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"laptop_tracker/lifecycle"
	"laptop_tracker/models"
)

var errReadOnly = errors.New("memstore: write inside View")

type Store struct {
	mu          sync.Mutex
	laptops     map[string]models.Laptop
	assignments map[string]models.Assignment
	persons     map[string]models.Person
	biometrics  map[string]models.BiometricDevice
}

var _ lifecycle.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		laptops:     map[string]models.Laptop{},
		assignments: map[string]models.Assignment{},
		persons:     map[string]models.Person{},
		biometrics:  map[string]models.BiometricDevice{},
	}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", lifecycle.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", lifecycle.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{s: s, readOnly: true})
}

type snapshot struct {
	laptops     map[string]models.Laptop
	assignments map[string]models.Assignment
	persons     map[string]models.Person
	biometrics  map[string]models.BiometricDevice
}

// Values in the maps are never mutated in place, so a shallow copy of
// each map is a full snapshot.
func (s *Store) snapshot() snapshot {
	return snapshot{
		laptops:     copyMap(s.laptops),
		assignments: copyMap(s.assignments),
		persons:     copyMap(s.persons),
		biometrics:  copyMap(s.biometrics),
	}
}

func (s *Store) restore(snap snapshot) {
	s.laptops = snap.laptops
	s.assignments = snap.assignments
	s.persons = snap.persons
	s.biometrics = snap.biometrics
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memTx struct {
	s        *Store
	readOnly bool
}

func (t *memTx) write() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// ---- laptops ----

func (t *memTx) GetLaptop(id string) (*models.Laptop, error) {
	l, ok := t.s.laptops[id]
	if !ok {
		return nil, fmt.Errorf("%w: laptop %s", lifecycle.ErrNotFound, id)
	}
	out := l.Clone()
	return &out, nil
}

// LockLaptop is GetLaptop: the store mutex already excludes other writers.
func (t *memTx) LockLaptop(id string) (*models.Laptop, error) { return t.GetLaptop(id) }

func (t *memTx) ListLaptops() ([]models.Laptop, error) {
	out := make([]models.Laptop, 0, len(t.s.laptops))
	for _, l := range t.s.laptops {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) FindLaptopBySerial(serial string) (*models.Laptop, error) {
	for _, l := range t.s.laptops {
		if l.SerialNumber == serial {
			out := l.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) CountLaptopsWithBiometric(serial string) (int64, error) {
	var n int64
	for _, l := range t.s.laptops {
		if l.BiometricSerial != nil && *l.BiometricSerial == serial {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertLaptop(l *models.Laptop) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.laptops[l.ID]; ok {
		return fmt.Errorf("%w: laptop %s", lifecycle.ErrDuplicateID, l.ID)
	}
	if other, _ := t.FindLaptopBySerial(l.SerialNumber); other != nil {
		return fmt.Errorf("%w: %s", lifecycle.ErrDuplicateSerial, l.SerialNumber)
	}
	t.s.laptops[l.ID] = l.Clone()
	return nil
}

func (t *memTx) UpdateLaptopDetails(l *models.Laptop) error {
	if err := t.write(); err != nil {
		return err
	}
	cur, ok := t.s.laptops[l.ID]
	if !ok {
		return fmt.Errorf("%w: laptop %s", lifecycle.ErrNotFound, l.ID)
	}
	if other, _ := t.FindLaptopBySerial(l.SerialNumber); other != nil && other.ID != l.ID {
		return fmt.Errorf("%w: %s", lifecycle.ErrDuplicateSerial, l.SerialNumber)
	}
	next := cur.Clone()
	in := l.Clone()
	next.Brand, next.Model, next.SerialNumber = in.Brand, in.Model, in.SerialNumber
	next.BiometricSerial = in.BiometricSerial
	next.UpdatedAt = in.UpdatedAt
	t.s.laptops[l.ID] = next
	return nil
}

func (t *memTx) UpdateLaptopState(l *models.Laptop, from models.LaptopStatus) error {
	if err := t.write(); err != nil {
		return err
	}
	cur, ok := t.s.laptops[l.ID]
	if !ok {
		return fmt.Errorf("%w: laptop %s", lifecycle.ErrNotFound, l.ID)
	}
	if cur.Status != from {
		return fmt.Errorf("%w: laptop %s is %s, expected %s", lifecycle.ErrInvalidTransition, l.ID, cur.Status, from)
	}
	next := cur.Clone()
	in := l.Clone()
	next.Status = in.Status
	next.CurrentHolder = in.CurrentHolder
	next.BiometricSerial = in.BiometricSerial
	next.UpdatedAt = in.UpdatedAt
	t.s.laptops[l.ID] = next
	return nil
}

func (t *memTx) DeleteLaptop(id string, from models.LaptopStatus) error {
	if err := t.write(); err != nil {
		return err
	}
	cur, ok := t.s.laptops[id]
	if !ok {
		return fmt.Errorf("%w: laptop %s", lifecycle.ErrNotFound, id)
	}
	if cur.Status != from {
		return fmt.Errorf("%w: laptop %s is %s", lifecycle.ErrInvalidState, id, cur.Status)
	}
	delete(t.s.laptops, id)
	return nil
}

func (t *memTx) RelinkBiometric(oldSerial, newSerial string) error {
	if err := t.write(); err != nil {
		return err
	}
	for id, l := range t.s.laptops {
		if l.BiometricSerial != nil && *l.BiometricSerial == oldSerial {
			next := l.Clone()
			v := newSerial
			next.BiometricSerial = &v
			t.s.laptops[id] = next
		}
	}
	return nil
}

// ---- ledger ----

func (t *memTx) OpenAssignment(laptopID string) (*models.Assignment, error) {
	for _, a := range t.s.assignments {
		if a.LaptopID == laptopID && a.Open() {
			out := a.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetAssignment(id string) (*models.Assignment, error) {
	a, ok := t.s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("%w: assignment %s", lifecycle.ErrNotFound, id)
	}
	out := a.Clone()
	return &out, nil
}

func (t *memTx) ListAssignments() ([]models.Assignment, error) {
	out := make([]models.Assignment, 0, len(t.s.assignments))
	for _, a := range t.s.assignments {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.After(out[j].AssignedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *memTx) HasOpenAssignmentFor(userName string) (bool, error) {
	for _, a := range t.s.assignments {
		if a.Open() && lifecycle.SameName(a.UserName, userName) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertAssignment(a *models.Assignment) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.assignments[a.ID]; ok {
		return fmt.Errorf("%w: assignment %s", lifecycle.ErrDuplicateID, a.ID)
	}
	if a.Open() {
		if open, _ := t.OpenAssignment(a.LaptopID); open != nil {
			return fmt.Errorf("%w: laptop %s already has open assignment %s", lifecycle.ErrInvalidTransition, a.LaptopID, open.ID)
		}
	}
	t.s.assignments[a.ID] = a.Clone()
	return nil
}

func (t *memTx) CloseAssignment(a *models.Assignment) error {
	if err := t.write(); err != nil {
		return err
	}
	cur, ok := t.s.assignments[a.ID]
	if !ok || !cur.Open() {
		return fmt.Errorf("%w: assignment %s", lifecycle.ErrNoActiveAssignment, a.ID)
	}
	if a.ReturnedAt == nil {
		return fmt.Errorf("%w: returnedAt is required to close %s", lifecycle.ErrValidation, a.ID)
	}
	next := cur.Clone()
	returned := *a.ReturnedAt
	next.ReturnedAt = &returned
	next.ReturnNotes = a.ReturnNotes
	next.UpdatedAt = a.UpdatedAt
	t.s.assignments[a.ID] = next
	return nil
}

// ---- directory ----

func (t *memTx) ListPersons() ([]models.Person, error) {
	out := make([]models.Person, 0, len(t.s.persons))
	for _, p := range t.s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey < out[j].NameKey })
	return out, nil
}

func (t *memTx) GetPerson(id string) (*models.Person, error) {
	p, ok := t.s.persons[id]
	if !ok {
		return nil, fmt.Errorf("%w: person %s", lifecycle.ErrNotFound, id)
	}
	return &p, nil
}

func (t *memTx) FindPersonByName(nameKey string) (*models.Person, error) {
	for _, p := range t.s.persons {
		if p.NameKey == nameKey {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertPerson(p *models.Person) error {
	if err := t.write(); err != nil {
		return err
	}
	if other, _ := t.FindPersonByName(p.NameKey); other != nil {
		return fmt.Errorf("%w: %q", lifecycle.ErrDuplicateName, p.Name)
	}
	t.s.persons[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePerson(p *models.Person) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.persons[p.ID]; !ok {
		return fmt.Errorf("%w: person %s", lifecycle.ErrNotFound, p.ID)
	}
	if other, _ := t.FindPersonByName(p.NameKey); other != nil && other.ID != p.ID {
		return fmt.Errorf("%w: %q", lifecycle.ErrDuplicateName, p.Name)
	}
	t.s.persons[p.ID] = *p
	return nil
}

func (t *memTx) DeletePerson(id string) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.persons[id]; !ok {
		return fmt.Errorf("%w: person %s", lifecycle.ErrNotFound, id)
	}
	delete(t.s.persons, id)
	return nil
}

func (t *memTx) ListBiometrics() ([]models.BiometricDevice, error) {
	out := make([]models.BiometricDevice, 0, len(t.s.biometrics))
	for _, d := range t.s.biometrics {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (t *memTx) GetBiometric(id string) (*models.BiometricDevice, error) {
	d, ok := t.s.biometrics[id]
	if !ok {
		return nil, fmt.Errorf("%w: biometric device %s", lifecycle.ErrNotFound, id)
	}
	return &d, nil
}

func (t *memTx) FindBiometricBySerial(serial string) (*models.BiometricDevice, error) {
	for _, d := range t.s.biometrics {
		if d.SerialNumber == serial {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertBiometric(d *models.BiometricDevice) error {
	if err := t.write(); err != nil {
		return err
	}
	if other, _ := t.FindBiometricBySerial(d.SerialNumber); other != nil {
		return fmt.Errorf("%w: biometric device %s", lifecycle.ErrDuplicateSerial, d.SerialNumber)
	}
	t.s.biometrics[d.ID] = *d
	return nil
}

func (t *memTx) UpdateBiometric(d *models.BiometricDevice) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.biometrics[d.ID]; !ok {
		return fmt.Errorf("%w: biometric device %s", lifecycle.ErrNotFound, d.ID)
	}
	if other, _ := t.FindBiometricBySerial(d.SerialNumber); other != nil && other.ID != d.ID {
		return fmt.Errorf("%w: biometric device %s", lifecycle.ErrDuplicateSerial, d.SerialNumber)
	}
	t.s.biometrics[d.ID] = *d
	return nil
}

func (t *memTx) DeleteBiometric(id string) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.biometrics[id]; !ok {
		return fmt.Errorf("%w: biometric device %s", lifecycle.ErrNotFound, id)
	}
	delete(t.s.biometrics, id)
	return nil
}
