package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

type ProviderType string

const (
	ProviderTypePhysician  ProviderType = "PHYSICIAN"
	ProviderTypeClinic     ProviderType = "CLINIC"
	ProviderTypeLaboratory ProviderType = "LABORATORY"
	ProviderTypePharmacy   ProviderType = "PHARMACY"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Provider is a bookable care resource: a physician, a clinic room, a
// lab slot. Appointments reference providers by id only.
type Provider struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        ProviderType `json:"type"`
	Department  string       `json:"department"`
	Specialties []string     `json:"specialties"`
	Status      string       `json:"status"`
	Archived    bool         `json:"archived"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (p *Provider) RecordID() string          { return p.ID }
func (p *Provider) SetRecordID(id string)     { p.ID = id }
func (p *Provider) IsArchived() bool          { return p.Archived }
func (p *Provider) SetArchived(archived bool) { p.Archived = archived }

// IsActive reports whether the provider can accept new bookings.
func (p *Provider) IsActive() bool {
	return p.Status == StatusActive && !p.Archived
}

func (p *Provider) Validate() error {
	var fields []string
	if p.Name == "" {
		fields = append(fields, "name")
	}
	switch p.Type {
	case ProviderTypePhysician, ProviderTypeClinic, ProviderTypeLaboratory, ProviderTypePharmacy:
	default:
		fields = append(fields, "type")
	}
	if p.Department == "" {
		fields = append(fields, "department")
	}
	if len(fields) > 0 {
		return &dualstore.ValidationError{Fields: fields}
	}
	return nil
}

var csvHeader = []string{
	"id", "name", "type", "department", "specialties", "status",
	"archived", "created_at", "updated_at",
}

func Codec() dualstore.Codec[*Provider] {
	return dualstore.Codec[*Provider]{
		Header: csvHeader,
		Encode: func(p *Provider) []string {
			return []string{
				p.ID,
				p.Name,
				string(p.Type),
				p.Department,
				strings.Join(p.Specialties, ";"),
				p.Status,
				strconv.FormatBool(p.Archived),
				p.CreatedAt.Format(time.RFC3339),
				p.UpdatedAt.Format(time.RFC3339),
			}
		},
		Decode: func(row []string) (*Provider, error) {
			if len(row) != len(csvHeader) {
				return nil, fmt.Errorf("provider row has %d columns, want %d", len(row), len(csvHeader))
			}
			archived, err := strconv.ParseBool(row[6])
			if err != nil {
				return nil, fmt.Errorf("provider %s: bad archived flag: %w", row[0], err)
			}
			created, err := time.Parse(time.RFC3339, row[7])
			if err != nil {
				return nil, fmt.Errorf("provider %s: bad created_at: %w", row[0], err)
			}
			updated, err := time.Parse(time.RFC3339, row[8])
			if err != nil {
				return nil, fmt.Errorf("provider %s: bad updated_at: %w", row[0], err)
			}
			var specialties []string
			if row[4] != "" {
				specialties = strings.Split(row[4], ";")
			}
			return &Provider{
				ID:          row[0],
				Name:        row[1],
				Type:        ProviderType(row[2]),
				Department:  row[3],
				Specialties: specialties,
				Status:      row[5],
				Archived:    archived,
				CreatedAt:   created,
				UpdatedAt:   updated,
			}, nil
		},
	}
}
