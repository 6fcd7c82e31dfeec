package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
)

type LineItem struct {
	Service string  `json:"service"`
	Amount  float64 `json:"amount"`
}

type Bill struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	AppointmentID string     `json:"appointment_id"`
	LineItems     []LineItem `json:"line_items"`
	Total         float64    `json:"total"`
	Status        Status     `json:"status"`
	BillDate      time.Time  `json:"bill_date"`
	DueDate       time.Time  `json:"due_date"`
	Archived      bool       `json:"archived"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b *Bill) RecordID() string          { return b.ID }
func (b *Bill) SetRecordID(id string)     { b.ID = id }
func (b *Bill) IsArchived() bool          { return b.Archived }
func (b *Bill) SetArchived(archived bool) { b.Archived = archived }

// Sum recomputes the total from the line items. The stored total is
// always derived, never edited directly.
func Sum(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

func (b *Bill) Validate() error {
	var fields []string
	if b.PatientID == "" {
		fields = append(fields, "patient_id")
	}
	if b.AppointmentID == "" {
		fields = append(fields, "appointment_id")
	}
	if len(b.LineItems) == 0 {
		fields = append(fields, "line_items")
	}
	for i, item := range b.LineItems {
		if item.Service == "" {
			fields = append(fields, fmt.Sprintf("line_items[%d].service", i))
		}
		if item.Amount < 0 {
			fields = append(fields, fmt.Sprintf("line_items[%d].amount", i))
		}
	}
	switch b.Status {
	case StatusPending, StatusPaid, StatusVoid:
	default:
		fields = append(fields, "status")
	}
	if len(fields) > 0 {
		return &dualstore.ValidationError{Fields: fields}
	}
	return nil
}

var csvHeader = []string{
	"id", "patient_id", "appointment_id", "line_items", "total",
	"status", "bill_date", "due_date", "archived", "created_at",
	"updated_at",
}

func Codec() dualstore.Codec[*Bill] {
	return dualstore.Codec[*Bill]{
		Header: csvHeader,
		Encode: func(b *Bill) []string {
			// Line items nest inside a single CSV cell as JSON; the
			// flat columns stay scalar.
			items, _ := json.Marshal(b.LineItems)
			return []string{
				b.ID,
				b.PatientID,
				b.AppointmentID,
				string(items),
				strconv.FormatFloat(b.Total, 'f', -1, 64),
				string(b.Status),
				b.BillDate.Format(time.RFC3339),
				b.DueDate.Format(time.RFC3339),
				strconv.FormatBool(b.Archived),
				b.CreatedAt.Format(time.RFC3339),
				b.UpdatedAt.Format(time.RFC3339),
			}
		},
		Decode: func(row []string) (*Bill, error) {
			if len(row) != len(csvHeader) {
				return nil, fmt.Errorf("bill row has %d columns, want %d", len(row), len(csvHeader))
			}
			var items []LineItem
			if err := json.Unmarshal([]byte(row[3]), &items); err != nil {
				return nil, fmt.Errorf("bill %s: bad line_items: %w", row[0], err)
			}
			total, err := strconv.ParseFloat(row[4], 64)
			if err != nil {
				return nil, fmt.Errorf("bill %s: bad total: %w", row[0], err)
			}
			billDate, err := time.Parse(time.RFC3339, row[6])
			if err != nil {
				return nil, fmt.Errorf("bill %s: bad bill_date: %w", row[0], err)
			}
			dueDate, err := time.Parse(time.RFC3339, row[7])
			if err != nil {
				return nil, fmt.Errorf("bill %s: bad due_date: %w", row[0], err)
			}
			archived, err := strconv.ParseBool(row[8])
			if err != nil {
				return nil, fmt.Errorf("bill %s: bad archived flag: %w", row[0], err)
			}
			created, err := time.Parse(time.RFC3339, row[9])
			if err != nil {
				return nil, fmt.Errorf("bill %s: bad created_at: %w", row[0], err)
			}
			updated, err := time.Parse(time.RFC3339, row[10])
			if err != nil {
				return nil, fmt.Errorf("bill %s: bad updated_at: %w", row[0], err)
			}
			return &Bill{
				ID:            row[0],
				PatientID:     row[1],
				AppointmentID: row[2],
				LineItems:     items,
				Total:         total,
				Status:        Status(row[5]),
				BillDate:      billDate,
				DueDate:       dueDate,
				Archived:      archived,
				CreatedAt:     created,
				UpdatedAt:     updated,
			}, nil
		},
	}
}
