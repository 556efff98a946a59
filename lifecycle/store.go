package lifecycle

import (
	"context"

	"laptop_tracker/models"
)

// Store is the record store behind the coordinator.
//
// Atomic runs fn as one unit: if fn returns an error every write made
// through tx is discarded. View runs read-only work; implementations may
// reject writes made through its tx.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the per-entity surface available inside a Store call.
//
// Lookups by id return an error wrapping ErrNotFound when the row is
// missing; Find* lookups return (nil, nil) instead.
type Tx interface {
	// Laptops.
	GetLaptop(id string) (*models.Laptop, error)
	// LockLaptop reads a laptop and holds it against concurrent writers
	// until the enclosing Atomic call returns.
	LockLaptop(id string) (*models.Laptop, error)
	ListLaptops() ([]models.Laptop, error)
	FindLaptopBySerial(serial string) (*models.Laptop, error)
	CountLaptopsWithBiometric(serial string) (int64, error)
	InsertLaptop(l *models.Laptop) error
	// UpdateLaptopDetails writes brand, model, serial and biometric link.
	UpdateLaptopDetails(l *models.Laptop) error
	// UpdateLaptopState writes status, holder and biometric link only if
	// the stored status still equals from; otherwise ErrInvalidTransition.
	UpdateLaptopState(l *models.Laptop, from models.LaptopStatus) error
	// DeleteLaptop removes the row only if its status equals from.
	DeleteLaptop(id string, from models.LaptopStatus) error
	// RelinkBiometric moves every laptop linked to oldSerial onto newSerial.
	RelinkBiometric(oldSerial, newSerial string) error

	// Ledger.
	OpenAssignment(laptopID string) (*models.Assignment, error)
	GetAssignment(id string) (*models.Assignment, error)
	// ListAssignments returns the ledger newest first.
	ListAssignments() ([]models.Assignment, error)
	HasOpenAssignmentFor(userName string) (bool, error)
	InsertAssignment(a *models.Assignment) error
	// CloseAssignment sets returned_at/return_notes on a still-open row;
	// otherwise ErrNoActiveAssignment.
	CloseAssignment(a *models.Assignment) error

	// Directory.
	ListPersons() ([]models.Person, error)
	GetPerson(id string) (*models.Person, error)
	FindPersonByName(nameKey string) (*models.Person, error)
	InsertPerson(p *models.Person) error
	UpdatePerson(p *models.Person) error
	DeletePerson(id string) error

	ListBiometrics() ([]models.BiometricDevice, error)
	GetBiometric(id string) (*models.BiometricDevice, error)
	FindBiometricBySerial(serial string) (*models.BiometricDevice, error)
	InsertBiometric(d *models.BiometricDevice) error
	UpdateBiometric(d *models.BiometricDevice) error
	DeleteBiometric(id string) error
}
