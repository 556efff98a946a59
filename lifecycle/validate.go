package lifecycle

import (
	"fmt"
	"strings"
)

// NormalizeSerial trims and uppercases a serial number. Serials are then
// compared exactly.
func NormalizeSerial(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeName trims and collapses inner whitespace; the stored spelling
// keeps its case.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey is the case-insensitive uniqueness key for person names.
func NameKey(s string) string {
	return strings.ToLower(NormalizeName(s))
}

// SameName reports whether two person names collide.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}

// Required fails when value is blank after trimming.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}

// LaptopInput is the admin form for a new laptop.
type LaptopInput struct {
	ID              string
	Brand           string
	Model           string
	SerialNumber    string
	BiometricSerial string // optional
}

func (in LaptopInput) normalized() LaptopInput {
	return LaptopInput{
		ID:              strings.TrimSpace(in.ID),
		Brand:           strings.TrimSpace(in.Brand),
		Model:           strings.TrimSpace(in.Model),
		SerialNumber:    NormalizeSerial(in.SerialNumber),
		BiometricSerial: NormalizeSerial(in.BiometricSerial),
	}
}

func (in LaptopInput) validate() error {
	for _, f := range []struct{ name, v string }{
		{"id", in.ID},
		{"brand", in.Brand},
		{"model", in.Model},
		{"serialNumber", in.SerialNumber},
	} {
		if err := Required(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

// LaptopPatch edits descriptive fields. Nil fields are left alone; an empty
// BiometricSerial unlinks the reader.
type LaptopPatch struct {
	Brand           *string
	Model           *string
	SerialNumber    *string
	BiometricSerial *string
}

func (p LaptopPatch) normalized() (LaptopPatch, error) {
	var out LaptopPatch
	if p.Brand != nil {
		v := strings.TrimSpace(*p.Brand)
		if err := Required("brand", v); err != nil {
			return out, err
		}
		out.Brand = &v
	}
	if p.Model != nil {
		v := strings.TrimSpace(*p.Model)
		if err := Required("model", v); err != nil {
			return out, err
		}
		out.Model = &v
	}
	if p.SerialNumber != nil {
		v := NormalizeSerial(*p.SerialNumber)
		if err := Required("serialNumber", v); err != nil {
			return out, err
		}
		out.SerialNumber = &v
	}
	if p.BiometricSerial != nil {
		v := NormalizeSerial(*p.BiometricSerial)
		out.BiometricSerial = &v
	}
	return out, nil
}
