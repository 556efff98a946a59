// Package seed loads a laptop inventory file through the lifecycle
// coordinator, so seeded records pass the same checks as API writes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"laptop_tracker/lifecycle"
	"laptop_tracker/memstore"

	"gopkg.in/yaml.v3"
)

// Inventory is the file format:
//
//	persons: ["Lic. Ana Pérez"]
//	biometrics: ["BIO-100"]
//	laptops:
//	  - id: LT-001
//	    brand: Dell
//	    model: Latitude 5440
//	    serialNumber: DL-5440-A
//	    biometricSerial: BIO-100
//	    maintenance: false
type Inventory struct {
	Persons    []string      `yaml:"persons"`
	Biometrics []string      `yaml:"biometrics"`
	Laptops    []LaptopEntry `yaml:"laptops"`
}

type LaptopEntry struct {
	ID              string `yaml:"id"`
	Brand           string `yaml:"brand"`
	Model           string `yaml:"model"`
	SerialNumber    string `yaml:"serialNumber"`
	BiometricSerial string `yaml:"biometricSerial"`
	Maintenance     bool   `yaml:"maintenance"`
}

// Parse decodes an inventory and rejects unknown keys.
func Parse(r io.Reader) (*Inventory, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var inv Inventory
	if err := dec.Decode(&inv); err != nil {
		if errors.Is(err, io.EOF) {
			return &inv, nil
		}
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	return &inv, nil
}

func LoadFile(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

type Counts struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type Report struct {
	Persons    Counts `json:"persons"`
	Biometrics Counts `json:"biometrics"`
	Laptops    Counts `json:"laptops"`
}

func (r Report) String() string {
	return fmt.Sprintf("persons %d created/%d skipped, biometrics %d/%d, laptops %d/%d",
		r.Persons.Created, r.Persons.Skipped,
		r.Biometrics.Created, r.Biometrics.Skipped,
		r.Laptops.Created, r.Laptops.Skipped)
}

func isDuplicate(err error) bool {
	return errors.Is(err, lifecycle.ErrDuplicateName) ||
		errors.Is(err, lifecycle.ErrDuplicateSerial) ||
		errors.Is(err, lifecycle.ErrDuplicateID)
}

func tally(c *Counts, err error) error {
	switch {
	case err == nil:
		c.Created++
	case isDuplicate(err):
		c.Skipped++
	default:
		return err
	}
	return nil
}

// Apply writes inv in dependency order: persons, biometric readers, then
// laptops. Records that already exist are counted as skipped; any other
// error stops the run.
func Apply(ctx context.Context, lc *lifecycle.Coordinator, inv *Inventory) (Report, error) {
	var rep Report
	for i, name := range inv.Persons {
		_, err := lc.CreatePerson(ctx, name)
		if err := tally(&rep.Persons, err); err != nil {
			return rep, fmt.Errorf("persons[%d] %q: %w", i, name, err)
		}
	}
	for i, serial := range inv.Biometrics {
		_, err := lc.CreateBiometric(ctx, serial)
		if err := tally(&rep.Biometrics, err); err != nil {
			return rep, fmt.Errorf("biometrics[%d] %q: %w", i, serial, err)
		}
	}
	for i, e := range inv.Laptops {
		l, err := lc.CreateLaptop(ctx, lifecycle.LaptopInput{
			ID:              e.ID,
			Brand:           e.Brand,
			Model:           e.Model,
			SerialNumber:    e.SerialNumber,
			BiometricSerial: e.BiometricSerial,
		})
		if err == nil && e.Maintenance {
			_, err = lc.SetMaintenance(ctx, l.ID, true)
		}
		if err := tally(&rep.Laptops, err); err != nil {
			return rep, fmt.Errorf("laptops[%d] %q: %w", i, e.ID, err)
		}
	}
	return rep, nil
}

// DryRun applies inv to an empty in-memory store. It catches bad rows and
// duplicates inside the file without touching the database.
func DryRun(ctx context.Context, inv *Inventory) (Report, error) {
	return Apply(ctx, lifecycle.New(memstore.New()), inv)
}
