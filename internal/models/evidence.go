package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

const (
	EvidenceImage = "image"
	EvidenceFile  = "file"
	EvidenceLink  = "link"
)

// Evidence вложение к сдаче работы, уже нормализованное.
type Evidence struct {
	Kind     string `json:"kind"`
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
	MIME     string `json:"mime,omitempty"`
}

// EvidenceList хранится JSON-массивом в одной колонке.
type EvidenceList []Evidence

func (l EvidenceList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *EvidenceList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = EvidenceList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("evidence: неподдерживаемый тип %T", src)
	}
	if len(raw) == 0 {
		*l = EvidenceList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// MarshalJSON отдаёт пустой массив вместо null.
func (l EvidenceList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Evidence(l))
}
