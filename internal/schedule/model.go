package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints (back-to-back appointments) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

func (iv Interval) valid() bool {
	return !iv.Start.IsZero() && iv.End.After(iv.Start)
}

type Appointment struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	ProviderID string    `json:"provider_id"`
	Department string    `json:"department"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     Status    `json:"status"`
	Notes      string    `json:"notes"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a *Appointment) RecordID() string          { return a.ID }
func (a *Appointment) SetRecordID(id string)     { a.ID = id }
func (a *Appointment) IsArchived() bool          { return a.Archived }
func (a *Appointment) SetArchived(archived bool) { a.Archived = archived }

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// Terminal reports whether the appointment can no longer change state.
func (a *Appointment) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}

func (a *Appointment) Validate() error {
	var fields []string
	if a.PatientID == "" {
		fields = append(fields, "patient_id")
	}
	if a.ProviderID == "" {
		fields = append(fields, "provider_id")
	}
	if !a.Interval().valid() {
		fields = append(fields, "interval")
	}
	switch a.Status {
	case StatusScheduled, StatusCompleted, StatusCancelled:
	default:
		fields = append(fields, "status")
	}
	if len(fields) > 0 {
		return &dualstore.ValidationError{Fields: fields}
	}
	return nil
}

var csvHeader = []string{
	"id", "patient_id", "provider_id", "department", "start", "end",
	"status", "notes", "archived", "created_at", "updated_at",
}

func Codec() dualstore.Codec[*Appointment] {
	return dualstore.Codec[*Appointment]{
		Header: csvHeader,
		Encode: func(a *Appointment) []string {
			return []string{
				a.ID,
				a.PatientID,
				a.ProviderID,
				a.Department,
				a.Start.Format(time.RFC3339),
				a.End.Format(time.RFC3339),
				string(a.Status),
				a.Notes,
				strconv.FormatBool(a.Archived),
				a.CreatedAt.Format(time.RFC3339),
				a.UpdatedAt.Format(time.RFC3339),
			}
		},
		Decode: func(row []string) (*Appointment, error) {
			if len(row) != len(csvHeader) {
				return nil, fmt.Errorf("appointment row has %d columns, want %d", len(row), len(csvHeader))
			}
			start, err := time.Parse(time.RFC3339, row[4])
			if err != nil {
				return nil, fmt.Errorf("appointment %s: bad start: %w", row[0], err)
			}
			end, err := time.Parse(time.RFC3339, row[5])
			if err != nil {
				return nil, fmt.Errorf("appointment %s: bad end: %w", row[0], err)
			}
			archived, err := strconv.ParseBool(row[8])
			if err != nil {
				return nil, fmt.Errorf("appointment %s: bad archived flag: %w", row[0], err)
			}
			created, err := time.Parse(time.RFC3339, row[9])
			if err != nil {
				return nil, fmt.Errorf("appointment %s: bad created_at: %w", row[0], err)
			}
			updated, err := time.Parse(time.RFC3339, row[10])
			if err != nil {
				return nil, fmt.Errorf("appointment %s: bad updated_at: %w", row[0], err)
			}
			return &Appointment{
				ID:         row[0],
				PatientID:  row[1],
				ProviderID: row[2],
				Department: row[3],
				Start:      start,
				End:        end,
				Status:     Status(row[6]),
				Notes:      row[7],
				Archived:   archived,
				CreatedAt:  created,
				UpdatedAt:  updated,
			}, nil
		},
	}
}
