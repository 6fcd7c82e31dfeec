package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mesikahq/hospital-ops/internal/medrecord"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
	"github.com/mesikahq/hospital-ops/internal/schedule"
)

type patientFixture struct {
	Ref         string `yaml:"ref"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	DateOfBirth string `yaml:"date_of_birth"`
	Gender      string `yaml:"gender"`
	BloodGroup  string `yaml:"blood_group"`
	Phone       string `yaml:"phone"`
	Email       string `yaml:"email"`
	Address     string `yaml:"address"`
}

type providerFixture struct {
	Ref         string   `yaml:"ref"`
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Department  string   `yaml:"department"`
	Specialties []string `yaml:"specialties"`
}

type appointmentFixture struct {
	PatientRef  string `yaml:"patient_ref"`
	ProviderRef string `yaml:"provider_ref"`
	Department  string `yaml:"department"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Notes       string `yaml:"notes"`
}

type recordFixture struct {
	PatientRef string `yaml:"patient_ref"`
	VisitDate  string `yaml:"visit_date"`
	Symptoms   string `yaml:"symptoms"`
	Diagnosis  string `yaml:"diagnosis"`
	Treatment  string `yaml:"treatment"`
	Medication string `yaml:"medication"`
}

type fixture struct {
	Patients       []patientFixture     `yaml:"patients"`
	Providers      []providerFixture    `yaml:"providers"`
	Appointments   []appointmentFixture `yaml:"appointments"`
	MedicalRecords []recordFixture      `yaml:"medical_records"`
}

type Deps struct {
	Patients  patient.Service
	Providers provider.Service
	Schedule  schedule.Manager
	Records   medrecord.Service
}

// Apply loads a YAML fixture and registers its entities through the
// regular services, so seeded data passes the same validation as API
// input. Fixture refs resolve to assigned ids for cross-references.
func Apply(ctx context.Context, path string, deps Deps) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	patientIDs := make(map[string]string, len(fx.Patients))
	for _, pf := range fx.Patients {
		dob, err := time.Parse("2006-01-02", pf.DateOfBirth)
		if err != nil {
			return fmt.Errorf("seed patient %s: bad date_of_birth: %w", pf.Ref, err)
		}
		id, err := deps.Patients.Register(ctx, &patient.Patient{
			FirstName:   pf.FirstName,
			LastName:    pf.LastName,
			DateOfBirth: dob,
			Gender:      pf.Gender,
			BloodGroup:  pf.BloodGroup,
			Phone:       pf.Phone,
			Email:       pf.Email,
			Address:     pf.Address,
		})
		if err != nil {
			return fmt.Errorf("seed patient %s: %w", pf.Ref, err)
		}
		patientIDs[pf.Ref] = id
	}

	providerIDs := make(map[string]string, len(fx.Providers))
	for _, pf := range fx.Providers {
		id, err := deps.Providers.Register(ctx, &provider.Provider{
			Name:        pf.Name,
			Type:        provider.ProviderType(pf.Type),
			Department:  pf.Department,
			Specialties: pf.Specialties,
		})
		if err != nil {
			return fmt.Errorf("seed provider %s: %w", pf.Ref, err)
		}
		providerIDs[pf.Ref] = id
	}

	for i, af := range fx.Appointments {
		start, err := time.Parse(time.RFC3339, af.Start)
		if err != nil {
			return fmt.Errorf("seed appointment %d: bad start: %w", i, err)
		}
		end, err := time.Parse(time.RFC3339, af.End)
		if err != nil {
			return fmt.Errorf("seed appointment %d: bad end: %w", i, err)
		}
		pid, ok := patientIDs[af.PatientRef]
		if !ok {
			return fmt.Errorf("seed appointment %d: unknown patient_ref %q", i, af.PatientRef)
		}
		prid, ok := providerIDs[af.ProviderRef]
		if !ok {
			return fmt.Errorf("seed appointment %d: unknown provider_ref %q", i, af.ProviderRef)
		}
		iv := schedule.Interval{Start: start, End: end}
		if _, err := deps.Schedule.Book(ctx, pid, prid, af.Department, iv, af.Notes); err != nil {
			return fmt.Errorf("seed appointment %d: %w", i, err)
		}
	}

	for i, rf := range fx.MedicalRecords {
		visit, err := time.Parse("2006-01-02", rf.VisitDate)
		if err != nil {
			return fmt.Errorf("seed medical record %d: bad visit_date: %w", i, err)
		}
		pid, ok := patientIDs[rf.PatientRef]
		if !ok {
			return fmt.Errorf("seed medical record %d: unknown patient_ref %q", i, rf.PatientRef)
		}
		_, err = deps.Records.Add(ctx, &medrecord.MedicalRecord{
			PatientID:  pid,
			VisitDate:  visit,
			Symptoms:   rf.Symptoms,
			Diagnosis:  rf.Diagnosis,
			Treatment:  rf.Treatment,
			Medication: rf.Medication,
		})
		if err != nil {
			return fmt.Errorf("seed medical record %d: %w", i, err)
		}
	}
	return nil
}
