package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/google/uuid"
)

type EquipmentStore struct {
	db *sql.DB
}

func NewEquipmentStore(db *sql.DB) *EquipmentStore {
	return &EquipmentStore{db: db}
}

func scanEquipment(scanner interface{ Scan(...any) error }) (*model.Equipment, error) {
	var e model.Equipment
	var desc, category, imageKey sql.NullString
	err := scanner.Scan(
		&e.ID, &e.Name, &desc, &category, &e.SerialNumber, &e.Condition, &e.Status,
		&e.Location, &imageKey, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Description = desc.String
	e.Category = category.String
	e.ImageKey = imageKey.String
	return &e, nil
}

const equipmentCols = `id, name, description, category, serial_number, condition, status, location, image_key, created_at, updated_at`

// EquipmentFilter narrows List results. Empty fields match everything.
type EquipmentFilter struct {
	Status   string
	Category string
	Search   string
}

func (s *EquipmentStore) Create(e model.Equipment) (*model.Equipment, error) {
	if e.Condition == "" {
		e.Condition = model.ConditionGood
	}
	if e.Status == "" {
		e.Status = model.EquipmentAvailable
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO equipment (id, name, description, category, serial_number, condition, status, location, image_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.Name, nullString(e.Description), nullString(e.Category), e.SerialNumber, e.Condition, e.Status,
		e.Location, nullString(e.ImageKey), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert equipment: %w", err)
	}
	return s.GetByID(id)
}

func (s *EquipmentStore) GetByID(id string) (*model.Equipment, error) {
	row := s.db.QueryRow(`SELECT `+equipmentCols+` FROM equipment WHERE id = ?`, id)
	e, err := scanEquipment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get equipment: %w", err)
	}
	return e, nil
}

func (s *EquipmentStore) List(f EquipmentFilter) ([]model.Equipment, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Search != "" {
		where = append(where, "(name LIKE ? OR serial_number LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}

	query := `SELECT ` + equipmentCols + ` FROM equipment`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	var items []model.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan equipment: %w", err)
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func (s *EquipmentStore) Update(e model.Equipment) (*model.Equipment, error) {
	_, err := s.db.Exec(
		`UPDATE equipment SET name = ?, description = ?, category = ?, serial_number = ?, condition = ?,
		 status = ?, location = ?, image_key = ?, updated_at = ? WHERE id = ?`,
		e.Name, nullString(e.Description), nullString(e.Category), e.SerialNumber, e.Condition,
		e.Status, e.Location, nullString(e.ImageKey), time.Now().UTC(), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update equipment: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EquipmentStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete equipment: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
