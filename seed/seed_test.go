package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"laptop_tracker/lifecycle"
	"laptop_tracker/memstore"
	"laptop_tracker/models"
)

const sample = `
persons:
  - Lic. Ana Pérez
  - Lic. Bruno Díaz
biometrics: [bio-100]
laptops:
  - id: LT-001
    brand: Dell
    model: Latitude 5440
    serialNumber: dl-5440-a
    biometricSerial: BIO-100
  - id: LT-002
    brand: Lenovo
    model: ThinkPad T14
    serialNumber: LN-T14-B
    maintenance: true
`

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	inv, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lc := lifecycle.New(memstore.New())

	rep, err := Apply(ctx, lc, inv)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := Report{Persons: Counts{Created: 2}, Biometrics: Counts{Created: 1}, Laptops: Counts{Created: 2}}
	if rep != want {
		t.Fatalf("first run = %+v, want %+v", rep, want)
	}

	l, err := lc.GetLaptop(ctx, "LT-002")
	if err != nil {
		t.Fatalf("GetLaptop: %v", err)
	}
	if l.Status != models.StatusMaintenance {
		t.Fatalf("LT-002 status = %s", l.Status)
	}
	l, _ = lc.GetLaptop(ctx, "LT-001")
	if l.SerialNumber != "DL-5440-A" || l.BiometricSerial == nil || *l.BiometricSerial != "BIO-100" {
		t.Fatalf("LT-001 not normalized: %+v", l)
	}

	rep, err = Apply(ctx, lc, inv)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	want = Report{Persons: Counts{Skipped: 2}, Biometrics: Counts{Skipped: 1}, Laptops: Counts{Skipped: 2}}
	if rep != want {
		t.Fatalf("second run = %+v, want %+v", rep, want)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("laptops:\n  - id: LT-1\n    colour: red\n"))
	if err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestParseEmpty(t *testing.T) {
	inv, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rep, err := DryRun(context.Background(), inv)
	if err != nil || rep != (Report{}) {
		t.Fatalf("empty inventory: %+v, %v", rep, err)
	}
}

func TestDryRunReportsBadRows(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"missing brand": {
			doc:  "laptops:\n  - id: LT-1\n    model: X1\n    serialNumber: S1\n",
			want: lifecycle.ErrValidation,
		},
		"unknown reader": {
			doc:  "laptops:\n  - id: LT-1\n    brand: B\n    model: M\n    serialNumber: S1\n    biometricSerial: NOPE\n",
			want: lifecycle.ErrNotFound,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			inv, err := Parse(strings.NewReader(tc.doc))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			_, err = DryRun(context.Background(), inv)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !strings.Contains(err.Error(), "laptops[0]") {
				t.Fatalf("error should name the row: %v", err)
			}
		})
	}
}

func TestDryRunCountsDuplicatesInsideFile(t *testing.T) {
	inv := &Inventory{Persons: []string{"Lic. A", "lic. a"}}
	rep, err := DryRun(context.Background(), inv)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if rep.Persons != (Counts{Created: 1, Skipped: 1}) {
		t.Fatalf("persons = %+v", rep.Persons)
	}
}
