// models/laptop.go
package models

import "time"

const (
	LaptopTable     = "laptops"
	AssignmentTable = "assignments"
)

type LaptopStatus string

const (
	StatusAvailable   LaptopStatus = "available"
	StatusInUse       LaptopStatus = "in-use"
	StatusMaintenance LaptopStatus = "maintenance"
)

// Valid reports whether s is one of the three lifecycle states.
func (s LaptopStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance:
		return true
	}
	return false
}

// Laptop keeps status/current_holder denormalized; only the lifecycle
// coordinator writes them.
type Laptop struct {
	ID              string       `gorm:"primaryKey;size:64" json:"id"`
	Brand           string       `gorm:"size:120;not null" json:"brand"`
	Model           string       `gorm:"size:120;not null" json:"model"`
	SerialNumber    string       `gorm:"size:120;uniqueIndex:laptops_serial_number_key;not null" json:"serialNumber"`
	Status          LaptopStatus `gorm:"size:20;index;not null;default:'available'" json:"status"`
	CurrentHolder   *string      `gorm:"size:200" json:"currentHolder"`
	BiometricSerial *string      `gorm:"size:120;index" json:"biometricSerial"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (Laptop) TableName() string { return LaptopTable }

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (l Laptop) Clone() Laptop {
	if l.CurrentHolder != nil {
		v := *l.CurrentHolder
		l.CurrentHolder = &v
	}
	if l.BiometricSerial != nil {
		v := *l.BiometricSerial
		l.BiometricSerial = &v
	}
	return l
}

// Assignment is one checkout in the ledger. ReturnedAt == nil means open.
type Assignment struct {
	ID              string     `gorm:"primaryKey;size:26" json:"id"`
	LaptopID        string     `gorm:"size:64;index;not null" json:"laptopId"`
	UserName        string     `gorm:"size:200;index;not null" json:"userName"`
	BiometricSerial *string    `gorm:"size:120" json:"biometricSerial,omitempty"`
	Purpose         string     `gorm:"size:255" json:"purpose,omitempty"`
	AssignedAt      time.Time  `gorm:"index;not null" json:"assignedAt"`
	ReturnedAt      *time.Time `gorm:"index" json:"returnedAt"`
	ReturnNotes     string     `gorm:"size:500" json:"returnNotes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (Assignment) TableName() string { return AssignmentTable }

func (a Assignment) Open() bool { return a.ReturnedAt == nil }

func (a Assignment) Clone() Assignment {
	if a.BiometricSerial != nil {
		v := *a.BiometricSerial
		a.BiometricSerial = &v
	}
	if a.ReturnedAt != nil {
		v := *a.ReturnedAt
		a.ReturnedAt = &v
	}
	return a
}
