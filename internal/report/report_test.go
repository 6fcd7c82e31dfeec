package report

import (
	"context"
	"testing"
	"time"

	"github.com/mesikahq/hospital-ops/internal/billing"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/medrecord"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
	"github.com/mesikahq/hospital-ops/internal/schedule"
)

type stores struct {
	patients     *dualstore.Store[*patient.Patient]
	providers    *dualstore.Store[*provider.Provider]
	appointments *dualstore.Store[*schedule.Appointment]
	bills        *dualstore.Store[*billing.Bill]
	records      *dualstore.Store[*medrecord.MedicalRecord]
}

func newStores(t *testing.T) *stores {
	t.Helper()
	dir := t.TempDir()

	patients, err := dualstore.Open(dir, "patients", patient.Codec())
	if err != nil {
		t.Fatalf("open patients: %v", err)
	}
	providers, err := dualstore.Open(dir, "providers", provider.Codec())
	if err != nil {
		t.Fatalf("open providers: %v", err)
	}
	appointments, err := dualstore.Open(dir, "appointments", schedule.Codec())
	if err != nil {
		t.Fatalf("open appointments: %v", err)
	}
	bills, err := dualstore.Open(dir, "bills", billing.Codec())
	if err != nil {
		t.Fatalf("open bills: %v", err)
	}
	records, err := dualstore.Open(dir, "medical_records", medrecord.Codec())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	t.Cleanup(func() {
		patients.Close()
		providers.Close()
		appointments.Close()
		bills.Close()
		records.Close()
	})
	return &stores{patients, providers, appointments, bills, records}
}

func (s *stores) service() Service {
	return NewService(s.patients, s.providers, s.appointments, s.bills, s.records)
}

func putPatient(t *testing.T, s *stores, gender, blood string, birthYear int) {
	t.Helper()
	_, err := s.patients.Put(&patient.Patient{
		FirstName:   "Test",
		LastName:    "Patient",
		DateOfBirth: time.Date(birthYear, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:      gender,
		BloodGroup:  blood,
	})
	if err != nil {
		t.Fatalf("put patient: %v", err)
	}
}

func putBill(t *testing.T, s *stores, status billing.Status, amount float64) {
	t.Helper()
	now := time.Now()
	_, err := s.bills.Put(&billing.Bill{
		PatientID:     "p1",
		AppointmentID: "a1",
		LineItems:     []billing.LineItem{{Service: "consult", Amount: amount}},
		Total:         amount,
		Status:        status,
		BillDate:      now,
		DueDate:       now.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("put bill: %v", err)
	}
}

func TestPatientStatistics(t *testing.T) {
	s := newStores(t)
	putPatient(t, s, "female", "O+", 1990)
	putPatient(t, s, "female", "A+", 1950)
	putPatient(t, s, "male", "O+", 2015)

	stats, err := s.service().PatientStatistics(context.Background())
	if err != nil {
		t.Fatalf("PatientStatistics: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.ByGender["female"] != 2 {
		t.Errorf("female count = %d, want 2", stats.ByGender["female"])
	}
	if stats.ByBloodType["O+"] != 2 {
		t.Errorf("O+ count = %d, want 2", stats.ByBloodType["O+"])
	}
	var grouped int
	for _, n := range stats.ByAgeGroup {
		grouped += n
	}
	if grouped != 3 {
		t.Errorf("age groups cover %d patients, want 3", grouped)
	}
	if stats.AgeMin >= stats.AgeMax {
		t.Errorf("AgeMin %d not below AgeMax %d", stats.AgeMin, stats.AgeMax)
	}
	if stats.AgeAvg < float64(stats.AgeMin) || stats.AgeAvg > float64(stats.AgeMax) {
		t.Errorf("AgeAvg %v outside [%d, %d]", stats.AgeAvg, stats.AgeMin, stats.AgeMax)
	}
}

func TestFinancialReport(t *testing.T) {
	s := newStores(t)
	putBill(t, s, billing.StatusPaid, 100)
	putBill(t, s, billing.StatusPending, 40)
	putBill(t, s, billing.StatusVoid, 999)

	rep, err := s.service().FinancialReport(context.Background())
	if err != nil {
		t.Fatalf("FinancialReport: %v", err)
	}
	if rep.TotalBilled != 140 {
		t.Errorf("TotalBilled = %v, want 140 (void excluded)", rep.TotalBilled)
	}
	if rep.TotalCollected != 100 {
		t.Errorf("TotalCollected = %v, want 100", rep.TotalCollected)
	}
	if rep.Outstanding != 40 {
		t.Errorf("Outstanding = %v, want 40", rep.Outstanding)
	}
	if rep.BillsByStatus["void"] != 1 {
		t.Errorf("void count = %d, want 1", rep.BillsByStatus["void"])
	}
	if rep.AverageBill != 70 {
		t.Errorf("AverageBill = %v, want 70", rep.AverageBill)
	}
	if rep.TopService != "consult" {
		t.Errorf("TopService = %q, want consult", rep.TopService)
	}
}

func TestMedicalAnalytics(t *testing.T) {
	s := newStores(t)
	for _, diagnosis := range []string{"flu", "flu", "hypertension"} {
		if _, err := s.records.Put(&medrecord.MedicalRecord{
			PatientID: "p1",
			VisitDate: time.Now(),
			Diagnosis: diagnosis,
		}); err != nil {
			t.Fatalf("put record: %v", err)
		}
	}

	analytics, err := s.service().MedicalAnalytics(context.Background())
	if err != nil {
		t.Fatalf("MedicalAnalytics: %v", err)
	}
	if analytics.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", analytics.TotalRecords)
	}
	if analytics.ByDiagnosis["flu"] != 2 {
		t.Errorf("flu count = %d, want 2", analytics.ByDiagnosis["flu"])
	}
}

func TestAppointmentAnalytics(t *testing.T) {
	s := newStores(t)
	now := time.Now()
	put := func(status schedule.Status, start time.Time, dept string) {
		_, err := s.appointments.Put(&schedule.Appointment{
			PatientID:  "p1",
			ProviderID: "pr1",
			Department: dept,
			Start:      start,
			End:        start.Add(30 * time.Minute),
			Status:     status,
		})
		if err != nil {
			t.Fatalf("put appointment: %v", err)
		}
	}
	put(schedule.StatusScheduled, now.Add(24*time.Hour), "Cardiology")
	put(schedule.StatusScheduled, now.Add(-24*time.Hour), "Cardiology")
	put(schedule.StatusCompleted, now.Add(-48*time.Hour), "Orthopedics")

	analytics, err := s.service().AppointmentAnalytics(context.Background())
	if err != nil {
		t.Fatalf("AppointmentAnalytics: %v", err)
	}
	if analytics.Total != 3 {
		t.Errorf("Total = %d, want 3", analytics.Total)
	}
	if analytics.Upcoming != 1 {
		t.Errorf("Upcoming = %d, want 1", analytics.Upcoming)
	}
	if analytics.ByDepartment["Cardiology"] != 2 {
		t.Errorf("Cardiology count = %d, want 2", analytics.ByDepartment["Cardiology"])
	}
	if analytics.ByStatus["completed"] != 1 {
		t.Errorf("completed count = %d, want 1", analytics.ByStatus["completed"])
	}
}

func TestDashboardAndExport(t *testing.T) {
	s := newStores(t)
	putPatient(t, s, "male", "B+", 1980)
	putBill(t, s, billing.StatusPending, 75)

	if _, err := s.providers.Put(&provider.Provider{
		Name:       "Dr. Test",
		Type:       provider.ProviderTypePhysician,
		Department: "General",
		Status:     provider.StatusActive,
	}); err != nil {
		t.Fatalf("put provider: %v", err)
	}

	svc := s.service()
	summary, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if summary.Patients != 1 || summary.ActiveProviders != 1 {
		t.Errorf("summary = %+v, want 1 patient and 1 active provider", summary)
	}
	if summary.PendingBills != 1 || summary.Outstanding != 75 {
		t.Errorf("summary bills = %d/%v, want 1 pending / 75 outstanding", summary.PendingBills, summary.Outstanding)
	}

	export, err := svc.ExportAll(context.Background())
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(export.Patients) != 1 || len(export.Providers) != 1 || len(export.Bills) != 1 {
		t.Error("export missing records")
	}
	if export.GeneratedAt.IsZero() {
		t.Error("export timestamp not set")
	}
}
