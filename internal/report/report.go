package report

import (
	"context"
	"time"

	"github.com/mesikahq/hospital-ops/internal/billing"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/medrecord"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
	"github.com/mesikahq/hospital-ops/internal/schedule"
)

type PatientStatistics struct {
	Total       int            `json:"total"`
	ByGender    map[string]int `json:"by_gender"`
	ByBloodType map[string]int `json:"by_blood_type"`
	ByAgeGroup  map[string]int `json:"by_age_group"`
	AgeMin      int            `json:"age_min"`
	AgeMax      int            `json:"age_max"`
	AgeAvg      float64        `json:"age_avg"`
}

type AppointmentAnalytics struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByDepartment  map[string]int `json:"by_department"`
	TopDepartment string         `json:"top_department"`
	Upcoming      int            `json:"upcoming"`
}

type FinancialReport struct {
	TotalBilled    float64        `json:"total_billed"`
	TotalCollected float64        `json:"total_collected"`
	Outstanding    float64        `json:"outstanding"`
	AverageBill    float64        `json:"average_bill"`
	TopService     string         `json:"top_service"`
	BillsByStatus  map[string]int `json:"bills_by_status"`
}

type MedicalAnalytics struct {
	TotalRecords int            `json:"total_records"`
	ByDiagnosis  map[string]int `json:"by_diagnosis"`
}

type DashboardSummary struct {
	Patients          int     `json:"patients"`
	ActiveProviders   int     `json:"active_providers"`
	AppointmentsToday int     `json:"appointments_today"`
	PendingBills      int     `json:"pending_bills"`
	Outstanding       float64 `json:"outstanding"`
}

// Export bundles every live record for a full data dump.
type Export struct {
	GeneratedAt    time.Time                  `json:"generated_at"`
	Patients       []*patient.Patient         `json:"patients"`
	Providers      []*provider.Provider       `json:"providers"`
	Appointments   []*schedule.Appointment    `json:"appointments"`
	Bills          []*billing.Bill            `json:"bills"`
	MedicalRecords []*medrecord.MedicalRecord `json:"medical_records"`
}

type Service interface {
	PatientStatistics(ctx context.Context) (*PatientStatistics, error)
	AppointmentAnalytics(ctx context.Context) (*AppointmentAnalytics, error)
	FinancialReport(ctx context.Context) (*FinancialReport, error)
	MedicalAnalytics(ctx context.Context) (*MedicalAnalytics, error)
	Dashboard(ctx context.Context) (*DashboardSummary, error)
	ExportAll(ctx context.Context) (*Export, error)
}

type service struct {
	patients     *dualstore.Store[*patient.Patient]
	providers    *dualstore.Store[*provider.Provider]
	appointments *dualstore.Store[*schedule.Appointment]
	bills        *dualstore.Store[*billing.Bill]
	records      *dualstore.Store[*medrecord.MedicalRecord]
}

func NewService(
	patients *dualstore.Store[*patient.Patient],
	providers *dualstore.Store[*provider.Provider],
	appointments *dualstore.Store[*schedule.Appointment],
	bills *dualstore.Store[*billing.Bill],
	records *dualstore.Store[*medrecord.MedicalRecord],
) Service {
	return &service{
		patients:     patients,
		providers:    providers,
		appointments: appointments,
		bills:        bills,
		records:      records,
	}
}

func (s *service) PatientStatistics(ctx context.Context) (*PatientStatistics, error) {
	stats := &PatientStatistics{
		ByGender:    map[string]int{},
		ByBloodType: map[string]int{},
		ByAgeGroup:  map[string]int{},
	}
	var ageSum int
	for _, p := range s.patients.List(nil) {
		age := p.Age()
		if stats.Total == 0 || age < stats.AgeMin {
			stats.AgeMin = age
		}
		if age > stats.AgeMax {
			stats.AgeMax = age
		}
		ageSum += age
		stats.Total++

		if p.Gender != "" {
			stats.ByGender[p.Gender]++
		}
		if p.BloodGroup != "" {
			stats.ByBloodType[p.BloodGroup]++
		}
		stats.ByAgeGroup[ageGroup(age)]++
	}
	if stats.Total > 0 {
		stats.AgeAvg = float64(ageSum) / float64(stats.Total)
	}
	return stats, nil
}

func ageGroup(age int) string {
	switch {
	case age < 18:
		return "0-17"
	case age < 36:
		return "18-35"
	case age < 56:
		return "36-55"
	case age < 76:
		return "56-75"
	default:
		return "76+"
	}
}

func (s *service) AppointmentAnalytics(ctx context.Context) (*AppointmentAnalytics, error) {
	now := time.Now()
	analytics := &AppointmentAnalytics{
		ByStatus:     map[string]int{},
		ByDepartment: map[string]int{},
	}
	for _, a := range s.appointments.List(nil) {
		analytics.Total++
		analytics.ByStatus[string(a.Status)]++
		if a.Department != "" {
			analytics.ByDepartment[a.Department]++
		}
		if a.Status == schedule.StatusScheduled && a.Start.After(now) {
			analytics.Upcoming++
		}
	}
	analytics.TopDepartment = topKey(analytics.ByDepartment)
	return analytics, nil
}

// topKey returns the most frequent key, ties broken alphabetically so
// the result is stable.
func topKey(counts map[string]int) string {
	var top string
	var max int
	for k, n := range counts {
		if n > max || (n == max && (top == "" || k < top)) {
			top, max = k, n
		}
	}
	return top
}

// FinancialReport sums pending and paid bills; void bills are excluded
// from every total.
func (s *service) FinancialReport(ctx context.Context) (*FinancialReport, error) {
	report := &FinancialReport{BillsByStatus: map[string]int{}}
	serviceRevenue := map[string]int{}
	var billed int
	for _, b := range s.bills.List(nil) {
		report.BillsByStatus[string(b.Status)]++
		switch b.Status {
		case billing.StatusPaid:
			report.TotalBilled += b.Total
			report.TotalCollected += b.Total
		case billing.StatusPending:
			report.TotalBilled += b.Total
			report.Outstanding += b.Total
		default:
			continue
		}
		billed++
		for _, item := range b.LineItems {
			serviceRevenue[item.Service]++
		}
	}
	if billed > 0 {
		report.AverageBill = report.TotalBilled / float64(billed)
	}
	report.TopService = topKey(serviceRevenue)
	return report, nil
}

func (s *service) MedicalAnalytics(ctx context.Context) (*MedicalAnalytics, error) {
	analytics := &MedicalAnalytics{ByDiagnosis: map[string]int{}}
	for _, r := range s.records.List(nil) {
		analytics.TotalRecords++
		if r.Diagnosis != "" {
			analytics.ByDiagnosis[r.Diagnosis]++
		}
	}
	return analytics, nil
}

func (s *service) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	summary := &DashboardSummary{}
	summary.Patients = len(s.patients.List(nil))
	summary.ActiveProviders = len(s.providers.List(func(p *provider.Provider) bool {
		return p.IsActive()
	}))

	y, mo, d := time.Now().Date()
	summary.AppointmentsToday = len(s.appointments.List(func(a *schedule.Appointment) bool {
		ay, amo, ad := a.Start.Date()
		return ay == y && amo == mo && ad == d && a.Status != schedule.StatusCancelled
	}))

	for _, b := range s.bills.List(func(b *billing.Bill) bool {
		return b.Status == billing.StatusPending
	}) {
		summary.PendingBills++
		summary.Outstanding += b.Total
	}
	return summary, nil
}

func (s *service) ExportAll(ctx context.Context) (*Export, error) {
	return &Export{
		GeneratedAt:    time.Now(),
		Patients:       s.patients.List(nil),
		Providers:      s.providers.List(nil),
		Appointments:   s.appointments.List(nil),
		Bills:          s.bills.List(nil),
		MedicalRecords: s.records.List(nil),
	}, nil
}
