// Package lifecycle owns every write to a laptop's status, current holder
// and the assignment ledger. Each operation runs as one Store.Atomic call,
// so the laptop row and its ledger row change together or not at all.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"laptop_tracker/ids"
	"laptop_tracker/models"
	"laptop_tracker/obs"
)

// Policy holds the configurable lifecycle choices.
type Policy struct {
	// ClearBiometricOnCheckIn unlinks the reader from the laptop on every
	// return. Off by default: the reader is treated as laptop equipment.
	ClearBiometricOnCheckIn bool
}

type Coordinator struct {
	store  Store
	policy Policy
	now    func() time.Time
	newID  func(time.Time) string
}

type Option func(*Coordinator)

func WithPolicy(p Policy) Option { return func(c *Coordinator) { c.policy = p } }

// WithClock overrides time.Now; tests use it to pin assignedAt/returnedAt.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		now:   time.Now,
		newID: ids.SortableAt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Policy() Policy { return c.policy }

type CheckOutRequest struct {
	LaptopID        string
	PersonName      string
	BiometricSerial string // optional
	Purpose         string // optional
}

type CheckOutResult struct {
	Laptop     models.Laptop     `json:"laptop"`
	Assignment models.Assignment `json:"assignment"`
}

// CheckOut lends an available laptop to a person from the directory.
func (c *Coordinator) CheckOut(ctx context.Context, req CheckOutRequest) (res *CheckOutResult, err error) {
	laptopID := strings.TrimSpace(req.LaptopID)
	name := NormalizeName(req.PersonName)
	bio := NormalizeSerial(req.BiometricSerial)
	defer func() {
		c.observe(ctx, "checkout", err, map[string]any{"laptopId": laptopID, "person": name})
	}()

	if err := Required("laptopId", laptopID); err != nil {
		return nil, err
	}
	if err := Required("personName", name); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		l, err := tx.LockLaptop(laptopID)
		if err != nil {
			return err
		}
		if l.Status != models.StatusAvailable {
			return fmt.Errorf("%w: laptop %s is %s", ErrInvalidTransition, l.ID, l.Status)
		}
		// A stray open row means the stores disagree; refuse rather than
		// open a second one.
		open, err := tx.OpenAssignment(l.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: laptop %s already has open assignment %s", ErrInvalidTransition, l.ID, open.ID)
		}

		p, err := tx.FindPersonByName(NameKey(name))
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: person %q", ErrNotFound, name)
		}
		if bio != "" {
			d, err := tx.FindBiometricBySerial(bio)
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("%w: biometric device %s", ErrNotFound, bio)
			}
		}

		now := c.now().UTC()
		next := l.Clone()
		holder := p.Name
		next.Status = models.StatusInUse
		next.CurrentHolder = &holder
		if bio != "" {
			next.BiometricSerial = &bio
		}
		next.UpdatedAt = now
		if err := tx.UpdateLaptopState(&next, models.StatusAvailable); err != nil {
			return err
		}

		a := models.Assignment{
			ID:              c.newID(now),
			LaptopID:        l.ID,
			UserName:        p.Name,
			BiometricSerial: next.Clone().BiometricSerial,
			Purpose:         strings.TrimSpace(req.Purpose),
			AssignedAt:      now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertAssignment(&a); err != nil {
			return err
		}
		res = &CheckOutResult{Laptop: next, Assignment: a}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type CheckInRequest struct {
	LaptopID    string
	ReturnNotes string
	// ClearBiometric unlinks the reader for this return even when the
	// policy keeps it.
	ClearBiometric bool
}

type CheckInResult struct {
	Laptop     models.Laptop     `json:"laptop"`
	Assignment models.Assignment `json:"assignment"`
}

// CheckIn closes the laptop's open assignment and makes it available.
func (c *Coordinator) CheckIn(ctx context.Context, req CheckInRequest) (res *CheckInResult, err error) {
	laptopID := strings.TrimSpace(req.LaptopID)
	defer func() {
		c.observe(ctx, "checkin", err, map[string]any{"laptopId": laptopID})
	}()
	if err := Required("laptopId", laptopID); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		l, err := tx.LockLaptop(laptopID)
		if err != nil {
			return err
		}
		open, err := tx.OpenAssignment(l.ID)
		if err != nil {
			return err
		}
		if open == nil {
			return fmt.Errorf("%w: laptop %s", ErrNoActiveAssignment, l.ID)
		}

		now := c.now().UTC()
		closed := open.Clone()
		closed.ReturnedAt = &now
		closed.ReturnNotes = strings.TrimSpace(req.ReturnNotes)
		closed.UpdatedAt = now
		if err := tx.CloseAssignment(&closed); err != nil {
			return err
		}

		next := l.Clone()
		next.Status = models.StatusAvailable
		next.CurrentHolder = nil
		if req.ClearBiometric || c.policy.ClearBiometricOnCheckIn {
			next.BiometricSerial = nil
		}
		next.UpdatedAt = now
		if err := tx.UpdateLaptopState(&next, l.Status); err != nil {
			return err
		}
		res = &CheckInResult{Laptop: next, Assignment: closed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetMaintenance moves a laptop into or out of maintenance. It never
// touches the ledger, so an in-use laptop must be checked in first.
// Requesting the state the laptop is already in is a no-op.
func (c *Coordinator) SetMaintenance(ctx context.Context, laptopID string, inMaintenance bool) (out *models.Laptop, err error) {
	laptopID = strings.TrimSpace(laptopID)
	defer func() {
		c.observe(ctx, "maintenance", err, map[string]any{"laptopId": laptopID, "inMaintenance": inMaintenance})
	}()
	if err := Required("laptopId", laptopID); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		l, err := tx.LockLaptop(laptopID)
		if err != nil {
			return err
		}
		target := models.StatusAvailable
		if inMaintenance {
			target = models.StatusMaintenance
		}
		switch {
		case l.Status == target:
			out = l
			return nil
		case l.Status == models.StatusInUse:
			return fmt.Errorf("%w: laptop %s is in use, check it in first", ErrInvalidTransition, l.ID)
		}
		next := l.Clone()
		next.Status = target
		next.UpdatedAt = c.now().UTC()
		if err := tx.UpdateLaptopState(&next, l.Status); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLaptop registers a laptop as available with no holder.
func (c *Coordinator) CreateLaptop(ctx context.Context, in LaptopInput) (out *models.Laptop, err error) {
	in = in.normalized()
	defer func() {
		c.observe(ctx, "create_laptop", err, map[string]any{"laptopId": in.ID, "serialNumber": in.SerialNumber})
	}()
	if err := in.validate(); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		if _, err := tx.GetLaptop(in.ID); err == nil {
			return fmt.Errorf("%w: laptop %s", ErrDuplicateID, in.ID)
		} else if !isNotFound(err) {
			return err
		}
		if err := ensureSerialFree(tx, in.SerialNumber, ""); err != nil {
			return err
		}
		if err := ensureBiometricExists(tx, in.BiometricSerial); err != nil {
			return err
		}
		now := c.now().UTC()
		l := &models.Laptop{
			ID:           in.ID,
			Brand:        in.Brand,
			Model:        in.Model,
			SerialNumber: in.SerialNumber,
			Status:       models.StatusAvailable,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if in.BiometricSerial != "" {
			bio := in.BiometricSerial
			l.BiometricSerial = &bio
		}
		if err := tx.InsertLaptop(l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EditLaptop updates descriptive fields; status and holder are untouched.
func (c *Coordinator) EditLaptop(ctx context.Context, laptopID string, patch LaptopPatch) (out *models.Laptop, err error) {
	laptopID = strings.TrimSpace(laptopID)
	defer func() {
		c.observe(ctx, "edit_laptop", err, map[string]any{"laptopId": laptopID})
	}()
	if err := Required("laptopId", laptopID); err != nil {
		return nil, err
	}
	patch, err = patch.normalized()
	if err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		l, err := tx.LockLaptop(laptopID)
		if err != nil {
			return err
		}
		next := l.Clone()
		if patch.Brand != nil {
			next.Brand = *patch.Brand
		}
		if patch.Model != nil {
			next.Model = *patch.Model
		}
		if patch.SerialNumber != nil && *patch.SerialNumber != l.SerialNumber {
			if err := ensureSerialFree(tx, *patch.SerialNumber, l.ID); err != nil {
				return err
			}
			next.SerialNumber = *patch.SerialNumber
		}
		if patch.BiometricSerial != nil {
			if *patch.BiometricSerial == "" {
				next.BiometricSerial = nil
			} else {
				if err := ensureBiometricExists(tx, *patch.BiometricSerial); err != nil {
					return err
				}
				bio := *patch.BiometricSerial
				next.BiometricSerial = &bio
			}
		}
		next.UpdatedAt = c.now().UTC()
		if err := tx.UpdateLaptopDetails(&next); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteLaptop removes an available laptop. Its ledger rows stay.
func (c *Coordinator) DeleteLaptop(ctx context.Context, laptopID string) (err error) {
	laptopID = strings.TrimSpace(laptopID)
	defer func() {
		c.observe(ctx, "delete_laptop", err, map[string]any{"laptopId": laptopID})
	}()
	if err := Required("laptopId", laptopID); err != nil {
		return err
	}

	return c.store.Atomic(ctx, func(tx Tx) error {
		l, err := tx.LockLaptop(laptopID)
		if err != nil {
			return err
		}
		if l.Status != models.StatusAvailable {
			return fmt.Errorf("%w: laptop %s is %s", ErrInvalidState, l.ID, l.Status)
		}
		open, err := tx.OpenAssignment(l.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: laptop %s has open assignment %s", ErrInvalidState, l.ID, open.ID)
		}
		return tx.DeleteLaptop(l.ID, models.StatusAvailable)
	})
}

func ensureSerialFree(tx Tx, serial, selfID string) error {
	other, err := tx.FindLaptopBySerial(serial)
	if err != nil {
		return err
	}
	if other != nil && other.ID != selfID {
		return fmt.Errorf("%w: %s is used by laptop %s", ErrDuplicateSerial, serial, other.ID)
	}
	return nil
}

func ensureBiometricExists(tx Tx, serial string) error {
	if serial == "" {
		return nil
	}
	d, err := tx.FindBiometricBySerial(serial)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: biometric device %s", ErrNotFound, serial)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (c *Coordinator) observe(ctx context.Context, op string, err error, fields map[string]any) {
	obs.RecordOperation(op, Outcome(err))
	if err != nil {
		return
	}
	_ = obs.LogEvent(ctx, "lifecycle."+op, fields)
}
