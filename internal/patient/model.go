package patient

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

const dateLayout = "2006-01-02"

type Patient struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Gender       string    `json:"gender"`
	BloodGroup   string    `json:"blood_group"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Patient) RecordID() string          { return p.ID }
func (p *Patient) SetRecordID(id string)     { p.ID = id }
func (p *Patient) IsArchived() bool          { return p.Archived }
func (p *Patient) SetArchived(archived bool) { p.Archived = archived }

// Name returns the patient's display name.
func (p *Patient) Name() string {
	return p.FirstName + " " + p.LastName
}

// Age returns the patient's age in whole years as of now.
func (p *Patient) Age() int {
	now := time.Now()
	years := now.Year() - p.DateOfBirth.Year()
	if now.YearDay() < p.DateOfBirth.YearDay() {
		years--
	}
	return years
}

// Validate reports every violated field rather than the first one, so
// the caller can fix the input in a single pass.
func (p *Patient) Validate() error {
	var fields []string
	if p.FirstName == "" {
		fields = append(fields, "first_name")
	}
	if p.LastName == "" {
		fields = append(fields, "last_name")
	}
	if p.DateOfBirth.IsZero() || p.DateOfBirth.After(time.Now()) {
		fields = append(fields, "date_of_birth")
	}
	if len(fields) > 0 {
		return &dualstore.ValidationError{Fields: fields}
	}
	return nil
}

var csvHeader = []string{
	"id", "first_name", "last_name", "date_of_birth", "gender",
	"blood_group", "phone", "email", "address", "registered_at",
	"archived", "created_at", "updated_at",
}

// Codec returns the CSV codec for the patients store.
func Codec() dualstore.Codec[*Patient] {
	return dualstore.Codec[*Patient]{
		Header: csvHeader,
		Encode: func(p *Patient) []string {
			return []string{
				p.ID,
				p.FirstName,
				p.LastName,
				p.DateOfBirth.Format(dateLayout),
				p.Gender,
				p.BloodGroup,
				p.Phone,
				p.Email,
				p.Address,
				p.RegisteredAt.Format(time.RFC3339),
				strconv.FormatBool(p.Archived),
				p.CreatedAt.Format(time.RFC3339),
				p.UpdatedAt.Format(time.RFC3339),
			}
		},
		Decode: func(row []string) (*Patient, error) {
			if len(row) != len(csvHeader) {
				return nil, fmt.Errorf("patient row has %d columns, want %d", len(row), len(csvHeader))
			}
			dob, err := time.Parse(dateLayout, row[3])
			if err != nil {
				return nil, fmt.Errorf("patient %s: bad date_of_birth: %w", row[0], err)
			}
			registered, err := time.Parse(time.RFC3339, row[9])
			if err != nil {
				return nil, fmt.Errorf("patient %s: bad registered_at: %w", row[0], err)
			}
			archived, err := strconv.ParseBool(row[10])
			if err != nil {
				return nil, fmt.Errorf("patient %s: bad archived flag: %w", row[0], err)
			}
			created, err := time.Parse(time.RFC3339, row[11])
			if err != nil {
				return nil, fmt.Errorf("patient %s: bad created_at: %w", row[0], err)
			}
			updated, err := time.Parse(time.RFC3339, row[12])
			if err != nil {
				return nil, fmt.Errorf("patient %s: bad updated_at: %w", row[0], err)
			}
			return &Patient{
				ID:           row[0],
				FirstName:    row[1],
				LastName:     row[2],
				DateOfBirth:  dob,
				Gender:       row[4],
				BloodGroup:   row[5],
				Phone:        row[6],
				Email:        row[7],
				Address:      row[8],
				RegisteredAt: registered,
				Archived:     archived,
				CreatedAt:    created,
				UpdatedAt:    updated,
			}, nil
		},
	}
}
