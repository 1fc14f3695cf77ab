package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QRTypeEquipment tags QR codes printed on equipment labels.
const QRTypeEquipment = "equipment"

// QRPayload is the JSON document encoded in equipment QR labels.
type QRPayload struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParseQRPayload decodes and validates scanned QR data.
func ParseQRPayload(data string) (*QRPayload, error) {
	var p QRPayload
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	if p.Type == "" {
		p.Type = QRTypeEquipment
	}
	if p.Type != QRTypeEquipment {
		return nil, fmt.Errorf("unsupported qr type %q", p.Type)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return nil, fmt.Errorf("invalid equipment id %q", p.ID)
	}
	return &p, nil
}
