package models

import "time"

const (
	PersonTable    = "persons"
	BiometricTable = "biometric_devices"
)

// Person is someone allowed to hold a laptop. Assignments reference it by
// name, so renames do not rewrite history.
type Person struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	NameKey   string    `gorm:"size:200;uniqueIndex:persons_name_key_key;not null" json:"-"` // lower(name)
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Person) TableName() string { return PersonTable }

type BiometricDevice struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	SerialNumber string    `gorm:"size:120;uniqueIndex:biometric_devices_serial_number_key;not null" json:"serialNumber"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (BiometricDevice) TableName() string { return BiometricTable }
