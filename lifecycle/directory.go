package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"laptop_tracker/ids"
	"laptop_tracker/models"
)

// CreatePerson adds someone who may hold laptops. Names are unique
// regardless of case.
func (c *Coordinator) CreatePerson(ctx context.Context, name string) (out *models.Person, err error) {
	name = NormalizeName(name)
	defer func() { c.observe(ctx, "create_person", err, map[string]any{"name": name}) }()
	if err := Required("name", name); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		if err := ensureNameFree(tx, name, ""); err != nil {
			return err
		}
		now := c.now().UTC()
		p := &models.Person{ID: ids.New(), Name: name, NameKey: NameKey(name), CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertPerson(p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RenamePerson changes a directory name. Ledger rows keep the name they
// were written with, so a person holding a laptop cannot be renamed.
func (c *Coordinator) RenamePerson(ctx context.Context, id, name string) (out *models.Person, err error) {
	id = strings.TrimSpace(id)
	name = NormalizeName(name)
	defer func() { c.observe(ctx, "rename_person", err, map[string]any{"personId": id, "name": name}) }()
	if err := Required("name", name); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		p, err := tx.GetPerson(id)
		if err != nil {
			return err
		}
		if p.Name == name {
			out = p
			return nil
		}
		if err := ensureNameFree(tx, name, p.ID); err != nil {
			return err
		}
		holding, err := tx.HasOpenAssignmentFor(p.Name)
		if err != nil {
			return err
		}
		if holding {
			return fmt.Errorf("%w: %s currently holds a laptop", ErrInvalidState, p.Name)
		}
		p.Name = name
		p.NameKey = NameKey(name)
		p.UpdatedAt = c.now().UTC()
		if err := tx.UpdatePerson(p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePerson removes a directory entry that holds no laptop.
func (c *Coordinator) DeletePerson(ctx context.Context, id string) (err error) {
	id = strings.TrimSpace(id)
	defer func() { c.observe(ctx, "delete_person", err, map[string]any{"personId": id}) }()

	return c.store.Atomic(ctx, func(tx Tx) error {
		p, err := tx.GetPerson(id)
		if err != nil {
			return err
		}
		holding, err := tx.HasOpenAssignmentFor(p.Name)
		if err != nil {
			return err
		}
		if holding {
			return fmt.Errorf("%w: %s currently holds a laptop", ErrInvalidState, p.Name)
		}
		return tx.DeletePerson(p.ID)
	})
}

func (c *Coordinator) CreateBiometric(ctx context.Context, serial string) (out *models.BiometricDevice, err error) {
	serial = NormalizeSerial(serial)
	defer func() { c.observe(ctx, "create_biometric", err, map[string]any{"serialNumber": serial}) }()
	if err := Required("serialNumber", serial); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		if err := ensureBiometricSerialFree(tx, serial, ""); err != nil {
			return err
		}
		now := c.now().UTC()
		d := &models.BiometricDevice{ID: ids.New(), SerialNumber: serial, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertBiometric(d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateBiometric changes a reader's serial and moves laptop links along
// with it. Ledger rows keep the serial they were written with.
func (c *Coordinator) UpdateBiometric(ctx context.Context, id, serial string) (out *models.BiometricDevice, err error) {
	id = strings.TrimSpace(id)
	serial = NormalizeSerial(serial)
	defer func() { c.observe(ctx, "update_biometric", err, map[string]any{"biometricId": id, "serialNumber": serial}) }()
	if err := Required("serialNumber", serial); err != nil {
		return nil, err
	}

	err = c.store.Atomic(ctx, func(tx Tx) error {
		d, err := tx.GetBiometric(id)
		if err != nil {
			return err
		}
		if d.SerialNumber == serial {
			out = d
			return nil
		}
		if err := ensureBiometricSerialFree(tx, serial, d.ID); err != nil {
			return err
		}
		old := d.SerialNumber
		d.SerialNumber = serial
		d.UpdatedAt = c.now().UTC()
		if err := tx.UpdateBiometric(d); err != nil {
			return err
		}
		if err := tx.RelinkBiometric(old, serial); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBiometric removes a reader no laptop links to.
func (c *Coordinator) DeleteBiometric(ctx context.Context, id string) (err error) {
	id = strings.TrimSpace(id)
	defer func() { c.observe(ctx, "delete_biometric", err, map[string]any{"biometricId": id}) }()

	return c.store.Atomic(ctx, func(tx Tx) error {
		d, err := tx.GetBiometric(id)
		if err != nil {
			return err
		}
		n, err := tx.CountLaptopsWithBiometric(d.SerialNumber)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s is linked to %d laptop(s)", ErrInvalidState, d.SerialNumber, n)
		}
		return tx.DeleteBiometric(d.ID)
	})
}

func ensureNameFree(tx Tx, name, selfID string) error {
	other, err := tx.FindPersonByName(NameKey(name))
	if err != nil {
		return err
	}
	if other != nil && other.ID != selfID {
		return fmt.Errorf("%w: %q", ErrDuplicateName, other.Name)
	}
	return nil
}

func ensureBiometricSerialFree(tx Tx, serial, selfID string) error {
	other, err := tx.FindBiometricBySerial(serial)
	if err != nil {
		return err
	}
	if other != nil && other.ID != selfID {
		return fmt.Errorf("%w: biometric device %s", ErrDuplicateSerial, serial)
	}
	return nil
}
