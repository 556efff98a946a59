package db

import (
	"fmt"
	"log"

	"laptop_tracker/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenAssignmentIndex is the partial unique index that allows at most one
// open assignment per laptop.
const OpenAssignmentIndex = "assignments_one_open_per_laptop"

// ConnectDB opens the Postgres pool. Call Migrate separately.
func ConnectDB(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", classify(err))
	}
	log.Println("Database connected")
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Laptop{},
		&models.Assignment{},
		&models.Person{},
		&models.BiometricDevice{},
		&models.Account{},
		&models.Credential{},
		&models.Invite{},
		&models.ActionLog{},
	); err != nil {
		return err
	}

	// one open assignment per laptop
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s
	  ON %s (laptop_id)
	  WHERE returned_at IS NULL;
	`, OpenAssignmentIndex, models.AssignmentTable)).Error; err != nil {
		return err
	}

	// history panel reads newest first
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_assigned_at_desc
	  ON %s (assigned_at DESC, id DESC);
	`, models.AssignmentTable, models.AssignmentTable)).Error; err != nil {
		return err
	}

	return nil
}
