package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"time"

	"laptop_tracker/lifecycle"
	"laptop_tracker/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return gdb, mock
}

var laptopColumns = []string{"id", "brand", "model", "serial_number", "status", "current_holder", "biometric_serial", "created_at", "updated_at"}

func laptopRow(status models.LaptopStatus, holder any) *sqlmock.Rows {
	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(laptopColumns).
		AddRow("LT-001", "Dell", "Latitude 5440", "DL-5440-A", string(status), holder, nil, ts, ts)
}

func expectLockedLaptop(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT \* FROM "laptops" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(rows)
}

func expectNoOpenAssignment(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT \* FROM "assignments" WHERE laptop_id = \$1 AND returned_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
}

func expectPerson(mock sqlmock.Sqlmock, name string) {
	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "persons" WHERE name_key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_key", "created_at", "updated_at"}).
			AddRow("0b4f6f1e-6d7c-4d55-9a51-0d5c5b0b8a11", name, lifecycle.NameKey(name), ts, ts))
}

func TestLedgerStoreCheckOutCommits(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := lifecycle.New(NewLedgerStore(gdb))

	mock.ExpectBegin()
	expectLockedLaptop(mock, laptopRow(models.StatusAvailable, nil))
	expectNoOpenAssignment(mock)
	expectPerson(mock, "Lic. A")
	mock.ExpectExec(`UPDATE "laptops" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "assignments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := c.CheckOut(context.Background(), lifecycle.CheckOutRequest{LaptopID: "LT-001", PersonName: "lic. a", Purpose: "meeting"})
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if res.Laptop.Status != models.StatusInUse || *res.Laptop.CurrentHolder != "Lic. A" {
		t.Fatalf("unexpected laptop: %+v", res.Laptop)
	}
	if len(res.Assignment.ID) != 26 || res.Assignment.UserName != "Lic. A" {
		t.Fatalf("unexpected assignment: %+v", res.Assignment)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerStoreLostRaceRollsBack(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := lifecycle.New(NewLedgerStore(gdb))

	mock.ExpectBegin()
	expectLockedLaptop(mock, laptopRow(models.StatusAvailable, nil))
	expectNoOpenAssignment(mock)
	expectPerson(mock, "Lic. B")
	mock.ExpectExec(`UPDATE "laptops" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := c.CheckOut(context.Background(), lifecycle.CheckOutRequest{LaptopID: "LT-001", PersonName: "Lic. B"})
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerStoreOpenIndexViolationRollsBack(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := lifecycle.New(NewLedgerStore(gdb))

	mock.ExpectBegin()
	expectLockedLaptop(mock, laptopRow(models.StatusAvailable, nil))
	expectNoOpenAssignment(mock)
	expectPerson(mock, "Lic. A")
	mock.ExpectExec(`UPDATE "laptops" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "assignments"`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: OpenAssignmentIndex})
	mock.ExpectRollback()

	_, err := c.CheckOut(context.Background(), lifecycle.CheckOutRequest{LaptopID: "LT-001", PersonName: "Lic. A"})
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerStoreCheckInWithoutOpenRow(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := lifecycle.New(NewLedgerStore(gdb))

	mock.ExpectBegin()
	expectLockedLaptop(mock, laptopRow(models.StatusMaintenance, nil))
	expectNoOpenAssignment(mock)
	mock.ExpectRollback()

	_, err := c.CheckIn(context.Background(), lifecycle.CheckInRequest{LaptopID: "LT-001"})
	if !errors.Is(err, lifecycle.ErrNoActiveAssignment) {
		t.Fatalf("want ErrNoActiveAssignment, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerStoreMissingLaptop(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := lifecycle.New(NewLedgerStore(gdb))

	mock.ExpectBegin()
	expectLockedLaptop(mock, sqlmock.NewRows(laptopColumns))
	mock.ExpectRollback()

	if err := c.DeleteLaptop(context.Background(), "LT-001"); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerStoreBeginFailureIsUnavailable(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := lifecycle.New(NewLedgerStore(gdb))

	mock.ExpectBegin().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	if _, err := c.SetMaintenance(context.Background(), "LT-001", true); !errors.Is(err, lifecycle.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	unique := func(constraint string) error {
		return &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraint}
	}
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"laptop serial", unique("laptops_serial_number_key"), lifecycle.ErrDuplicateSerial},
		{"reader serial", unique("biometric_devices_serial_number_key"), lifecycle.ErrDuplicateSerial},
		{"person name", unique("persons_name_key_key"), lifecycle.ErrDuplicateName},
		{"laptop id", unique("laptops_pkey"), lifecycle.ErrDuplicateID},
		{"open assignment", unique(OpenAssignmentIndex), lifecycle.ErrInvalidTransition},
		{"record not found", gorm.ErrRecordNotFound, lifecycle.ErrNotFound},
		{"bad conn", driver.ErrBadConn, lifecycle.ErrStoreUnavailable},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, lifecycle.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, lifecycle.ErrStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	other := &pgconn.PgError{Code: "23503", ConstraintName: "fk"}
	if got := classify(other); got != error(other) {
		t.Fatalf("unrelated pg error should pass through, got %v", got)
	}
	if classify(nil) != nil {
		t.Fatal("classify(nil) should be nil")
	}
}
