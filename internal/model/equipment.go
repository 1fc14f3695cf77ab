package model

import "time"

// Equipment status constants
const (
	EquipmentAvailable   = "available"
	EquipmentBorrowed    = "borrowed"
	EquipmentMaintenance = "maintenance"
	EquipmentLost        = "lost"
)

// Equipment condition constants
const (
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
	ConditionPoor      = "poor"
)

func ValidEquipmentStatus(s string) bool {
	switch s {
	case EquipmentAvailable, EquipmentBorrowed, EquipmentMaintenance, EquipmentLost:
		return true
	}
	return false
}

func ValidCondition(c string) bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

type Equipment struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Condition    string    `json:"condition"`
	Status       string    `json:"status"`
	Location     string    `json:"location"`
	ImageKey     string    `json:"-"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
