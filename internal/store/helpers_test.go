package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/labbo/internal/database"
	"github.com/dukerupert/labbo/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email, role string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(NewUser{
		Email:    email,
		FullName: "Test User",
		Role:     role,
		Password: "secret123",
		Verified: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestEquipment(t *testing.T, db *sql.DB, name, serial string) *model.Equipment {
	t.Helper()
	e, err := NewEquipmentStore(db).Create(model.Equipment{
		Name:         name,
		SerialNumber: serial,
		Location:     "Lab 1",
	})
	if err != nil {
		t.Fatalf("create equipment: %v", err)
	}
	return e
}

func daysFromNow(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, n)
}
