package medrecord

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

type MedicalRecord struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	VisitDate  time.Time `json:"visit_date"`
	Symptoms   string    `json:"symptoms"`
	Diagnosis  string    `json:"diagnosis"`
	Treatment  string    `json:"treatment"`
	Medication string    `json:"medication"`
	Tests      string    `json:"tests"`
	Notes      string    `json:"notes"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *MedicalRecord) RecordID() string          { return r.ID }
func (r *MedicalRecord) SetRecordID(id string)     { r.ID = id }
func (r *MedicalRecord) IsArchived() bool          { return r.Archived }
func (r *MedicalRecord) SetArchived(archived bool) { r.Archived = archived }

func (r *MedicalRecord) Validate() error {
	var fields []string
	if r.PatientID == "" {
		fields = append(fields, "patient_id")
	}
	if r.Diagnosis == "" {
		fields = append(fields, "diagnosis")
	}
	if r.VisitDate.IsZero() {
		fields = append(fields, "visit_date")
	}
	if len(fields) > 0 {
		return &dualstore.ValidationError{Fields: fields}
	}
	return nil
}

var csvHeader = []string{
	"id", "patient_id", "visit_date", "symptoms", "diagnosis",
	"treatment", "medication", "tests", "notes", "archived",
	"created_at", "updated_at",
}

func Codec() dualstore.Codec[*MedicalRecord] {
	return dualstore.Codec[*MedicalRecord]{
		Header: csvHeader,
		Encode: func(r *MedicalRecord) []string {
			return []string{
				r.ID,
				r.PatientID,
				r.VisitDate.Format(time.RFC3339),
				r.Symptoms,
				r.Diagnosis,
				r.Treatment,
				r.Medication,
				r.Tests,
				r.Notes,
				strconv.FormatBool(r.Archived),
				r.CreatedAt.Format(time.RFC3339),
				r.UpdatedAt.Format(time.RFC3339),
			}
		},
		Decode: func(row []string) (*MedicalRecord, error) {
			if len(row) != len(csvHeader) {
				return nil, fmt.Errorf("medical record row has %d columns, want %d", len(row), len(csvHeader))
			}
			visit, err := time.Parse(time.RFC3339, row[2])
			if err != nil {
				return nil, fmt.Errorf("medical record %s: bad visit_date: %w", row[0], err)
			}
			archived, err := strconv.ParseBool(row[9])
			if err != nil {
				return nil, fmt.Errorf("medical record %s: bad archived flag: %w", row[0], err)
			}
			created, err := time.Parse(time.RFC3339, row[10])
			if err != nil {
				return nil, fmt.Errorf("medical record %s: bad created_at: %w", row[0], err)
			}
			updated, err := time.Parse(time.RFC3339, row[11])
			if err != nil {
				return nil, fmt.Errorf("medical record %s: bad updated_at: %w", row[0], err)
			}
			return &MedicalRecord{
				ID:         row[0],
				PatientID:  row[1],
				VisitDate:  visit,
				Symptoms:   row[3],
				Diagnosis:  row[4],
				Treatment:  row[5],
				Medication: row[6],
				Tests:      row[7],
				Notes:      row[8],
				Archived:   archived,
				CreatedAt:  created,
				UpdatedAt:  updated,
			}, nil
		},
	}
}
