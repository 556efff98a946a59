package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"laptop_tracker/lifecycle"
	"laptop_tracker/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore is the Postgres lifecycle.Store. Every Atomic call is one
// transaction; laptop rows are read with SELECT ... FOR UPDATE before any
// state change, and the partial unique index on open assignments backs the
// one-open-row rule.
type LedgerStore struct{ DB *gorm.DB }

var _ lifecycle.Store = (*LedgerStore)(nil)

func NewLedgerStore(db *gorm.DB) *LedgerStore { return &LedgerStore{DB: db} }

func (s *LedgerStore) Atomic(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
	return classify(err)
}

func (s *LedgerStore) View(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, &sql.TxOptions{ReadOnly: true})
	return classify(err)
}

type gormTx struct{ db *gorm.DB }

// Laptops

func (t *gormTx) GetLaptop(id string) (*models.Laptop, error) {
	var l models.Laptop
	if err := t.db.Take(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "laptop", id)
	}
	return &l, nil
}

func (t *gormTx) LockLaptop(id string) (*models.Laptop, error) {
	var l models.Laptop
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "laptop", id)
	}
	return &l, nil
}

func (t *gormTx) ListLaptops() ([]models.Laptop, error) {
	var ls []models.Laptop
	if err := t.db.Order("id").Find(&ls).Error; err != nil {
		return nil, classify(err)
	}
	return ls, nil
}

func (t *gormTx) FindLaptopBySerial(serial string) (*models.Laptop, error) {
	var ls []models.Laptop
	if err := t.db.Where("serial_number = ?", serial).Limit(1).Find(&ls).Error; err != nil {
		return nil, classify(err)
	}
	if len(ls) == 0 {
		return nil, nil
	}
	return &ls[0], nil
}

func (t *gormTx) CountLaptopsWithBiometric(serial string) (int64, error) {
	var n int64
	err := t.db.Model(&models.Laptop{}).
		Where("biometric_serial = ?", serial).
		Count(&n).Error
	return n, classify(err)
}

func (t *gormTx) InsertLaptop(l *models.Laptop) error {
	return classify(t.db.Create(l).Error)
}

func (t *gormTx) UpdateLaptopDetails(l *models.Laptop) error {
	res := t.db.Model(&models.Laptop{}).
		Where("id = ?", l.ID).
		Updates(map[string]any{
			"brand":            l.Brand,
			"model":            l.Model,
			"serial_number":    l.SerialNumber,
			"biometric_serial": l.BiometricSerial,
			"updated_at":       l.UpdatedAt,
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: laptop %s", lifecycle.ErrNotFound, l.ID)
	}
	return nil
}

// UpdateLaptopState is a conditional update: it only applies while the row
// still has status = from.
func (t *gormTx) UpdateLaptopState(l *models.Laptop, from models.LaptopStatus) error {
	res := t.db.Model(&models.Laptop{}).
		Where("id = ? AND status = ?", l.ID, from).
		Updates(map[string]any{
			"status":           l.Status,
			"current_holder":   l.CurrentHolder,
			"biometric_serial": l.BiometricSerial,
			"updated_at":       l.UpdatedAt,
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: laptop %s is no longer %s", lifecycle.ErrInvalidTransition, l.ID, from)
	}
	return nil
}

func (t *gormTx) DeleteLaptop(id string, from models.LaptopStatus) error {
	res := t.db.Where("id = ? AND status = ?", id, from).Delete(&models.Laptop{})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := t.GetLaptop(id); err != nil {
			return err
		}
		return fmt.Errorf("%w: laptop %s is no longer %s", lifecycle.ErrInvalidState, id, from)
	}
	return nil
}

func (t *gormTx) RelinkBiometric(oldSerial, newSerial string) error {
	return classify(t.db.Model(&models.Laptop{}).
		Where("biometric_serial = ?", oldSerial).
		Update("biometric_serial", newSerial).Error)
}

// Ledger

func (t *gormTx) OpenAssignment(laptopID string) (*models.Assignment, error) {
	var as []models.Assignment
	if err := t.db.Where("laptop_id = ? AND returned_at IS NULL", laptopID).
		Limit(1).Find(&as).Error; err != nil {
		return nil, classify(err)
	}
	if len(as) == 0 {
		return nil, nil
	}
	return &as[0], nil
}

func (t *gormTx) GetAssignment(id string) (*models.Assignment, error) {
	var a models.Assignment
	if err := t.db.Take(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "assignment", id)
	}
	return &a, nil
}

func (t *gormTx) ListAssignments() ([]models.Assignment, error) {
	var as []models.Assignment
	if err := t.db.Order("assigned_at DESC, id DESC").Find(&as).Error; err != nil {
		return nil, classify(err)
	}
	return as, nil
}

func (t *gormTx) HasOpenAssignmentFor(userName string) (bool, error) {
	var n int64
	err := t.db.Model(&models.Assignment{}).
		Where("returned_at IS NULL AND LOWER(user_name) = ?", lifecycle.NameKey(userName)).
		Count(&n).Error
	return n > 0, classify(err)
}

func (t *gormTx) InsertAssignment(a *models.Assignment) error {
	return classify(t.db.Create(a).Error)
}

func (t *gormTx) CloseAssignment(a *models.Assignment) error {
	if a.ReturnedAt == nil {
		return fmt.Errorf("%w: returnedAt is required to close %s", lifecycle.ErrValidation, a.ID)
	}
	res := t.db.Model(&models.Assignment{}).
		Where("id = ? AND returned_at IS NULL", a.ID).
		Updates(map[string]any{
			"returned_at":  *a.ReturnedAt,
			"return_notes": a.ReturnNotes,
			"updated_at":   a.UpdatedAt,
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: assignment %s", lifecycle.ErrNoActiveAssignment, a.ID)
	}
	return nil
}

// Directory

func (t *gormTx) ListPersons() ([]models.Person, error) {
	var ps []models.Person
	if err := t.db.Order("name_key").Find(&ps).Error; err != nil {
		return nil, classify(err)
	}
	return ps, nil
}

func (t *gormTx) GetPerson(id string) (*models.Person, error) {
	var p models.Person
	if err := t.db.Take(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "person", id)
	}
	return &p, nil
}

func (t *gormTx) FindPersonByName(nameKey string) (*models.Person, error) {
	var ps []models.Person
	if err := t.db.Where("name_key = ?", nameKey).Limit(1).Find(&ps).Error; err != nil {
		return nil, classify(err)
	}
	if len(ps) == 0 {
		return nil, nil
	}
	return &ps[0], nil
}

func (t *gormTx) InsertPerson(p *models.Person) error {
	return classify(t.db.Create(p).Error)
}

func (t *gormTx) UpdatePerson(p *models.Person) error {
	res := t.db.Model(&models.Person{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":       p.Name,
			"name_key":   p.NameKey,
			"updated_at": p.UpdatedAt,
		})
	return affected(res, "person", p.ID)
}

func (t *gormTx) DeletePerson(id string) error {
	return affected(t.db.Where("id = ?", id).Delete(&models.Person{}), "person", id)
}

func (t *gormTx) ListBiometrics() ([]models.BiometricDevice, error) {
	var ds []models.BiometricDevice
	if err := t.db.Order("serial_number").Find(&ds).Error; err != nil {
		return nil, classify(err)
	}
	return ds, nil
}

func (t *gormTx) GetBiometric(id string) (*models.BiometricDevice, error) {
	var d models.BiometricDevice
	if err := t.db.Take(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "biometric device", id)
	}
	return &d, nil
}

func (t *gormTx) FindBiometricBySerial(serial string) (*models.BiometricDevice, error) {
	var ds []models.BiometricDevice
	if err := t.db.Where("serial_number = ?", serial).Limit(1).Find(&ds).Error; err != nil {
		return nil, classify(err)
	}
	if len(ds) == 0 {
		return nil, nil
	}
	return &ds[0], nil
}

func (t *gormTx) InsertBiometric(d *models.BiometricDevice) error {
	return classify(t.db.Create(d).Error)
}

func (t *gormTx) UpdateBiometric(d *models.BiometricDevice) error {
	res := t.db.Model(&models.BiometricDevice{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"serial_number": d.SerialNumber,
			"updated_at":    d.UpdatedAt,
		})
	return affected(res, "biometric device", d.ID)
}

func (t *gormTx) DeleteBiometric(id string) error {
	return affected(t.db.Where("id = ?", id).Delete(&models.BiometricDevice{}), "biometric device", id)
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", lifecycle.ErrNotFound, kind, id)
	}
	return classify(err)
}

func affected(res *gorm.DB, kind, id string) error {
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", lifecycle.ErrNotFound, kind, id)
	}
	return nil
}
