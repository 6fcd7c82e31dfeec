package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
)

type fixture struct {
	manager    Manager
	patients   patient.Service
	providers  provider.Service
	patientID  string
	providerID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	auditService, err := audit.NewService(dir)
	if err != nil {
		t.Fatalf("audit.NewService: %v", err)
	}

	patientStore, err := dualstore.Open(dir, "patients", patient.Codec())
	if err != nil {
		t.Fatalf("open patient store: %v", err)
	}
	t.Cleanup(func() { patientStore.Close() })
	patients := patient.NewService(patientStore, auditService)

	providerStore, err := dualstore.Open(dir, "providers", provider.Codec())
	if err != nil {
		t.Fatalf("open provider store: %v", err)
	}
	t.Cleanup(func() { providerStore.Close() })
	providers := provider.NewService(providerStore, auditService)

	apptStore, err := dualstore.Open(dir, "appointments", Codec())
	if err != nil {
		t.Fatalf("open appointment store: %v", err)
	}
	t.Cleanup(func() { apptStore.Close() })

	patientID, err := patients.Register(ctx, &patient.Patient{
		FirstName:   "Ama",
		LastName:    "Owusu",
		DateOfBirth: time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("register patient: %v", err)
	}

	providerID, err := providers.Register(ctx, &provider.Provider{
		Name:       "Dr. Mensah",
		Type:       provider.ProviderTypePhysician,
		Department: "Cardiology",
	})
	if err != nil {
		t.Fatalf("register provider: %v", err)
	}

	return &fixture{
		manager:    NewManager(apptStore, patients, providers, auditService),
		patients:   patients,
		providers:  providers,
		patientID:  patientID,
		providerID: providerID,
	}
}

func slot(hour, minute, durMinutes int) Interval {
	start := time.Date(2026, 9, 10, hour, minute, 0, 0, time.UTC)
	return Interval{Start: start, End: start.Add(time.Duration(durMinutes) * time.Minute)}
}

func TestBookAndGet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "Cardiology", slot(9, 0, 30), "checkup")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	appt, err := fx.manager.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("Status = %s, want scheduled", appt.Status)
	}
	if appt.PatientID != fx.patientID || appt.ProviderID != fx.providerID {
		t.Error("appointment lost its references")
	}
}

func TestDoubleBookingSameProvider(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 0, 60), ""); err != nil {
		t.Fatalf("first Book: %v", err)
	}

	otherPatient, err := fx.patients.Register(ctx, &patient.Patient{
		FirstName:   "Kofi",
		LastName:    "Asante",
		DateOfBirth: time.Date(1985, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("register second patient: %v", err)
	}

	// Contained interval, same provider.
	_, err = fx.manager.Book(ctx, otherPatient, fx.providerID, "", slot(9, 15, 15), "")
	if !errors.Is(err, ErrSchedulingConflict) {
		t.Errorf("overlapping Book = %v, want ErrSchedulingConflict", err)
	}
}

func TestDoubleBookingSamePatient(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	otherProvider, err := fx.providers.Register(ctx, &provider.Provider{
		Name:       "Central Lab",
		Type:       provider.ProviderTypeLaboratory,
		Department: "Pathology",
	})
	if err != nil {
		t.Fatalf("register second provider: %v", err)
	}

	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(10, 0, 30), ""); err != nil {
		t.Fatalf("first Book: %v", err)
	}

	_, err = fx.manager.Book(ctx, fx.patientID, otherProvider, "", slot(10, 15, 30), "")
	if !errors.Is(err, ErrSchedulingConflict) {
		t.Errorf("patient double booking = %v, want ErrSchedulingConflict", err)
	}
}

func TestBackToBackSlotsAllowed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 0, 30), ""); err != nil {
		t.Fatalf("first Book: %v", err)
	}
	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 30, 30), ""); err != nil {
		t.Errorf("back-to-back Book = %v, want nil", err)
	}
}

func TestCancelledSlotIsReusable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(11, 0, 30), "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if err := fx.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(11, 0, 30), ""); err != nil {
		t.Errorf("rebooking cancelled slot = %v, want nil", err)
	}
}

func TestCancelIdempotentCompleteFinal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(12, 0, 30), "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if err := fx.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := fx.manager.Cancel(ctx, id); err != nil {
		t.Errorf("second Cancel = %v, want nil", err)
	}
	if err := fx.manager.Complete(ctx, id); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Complete cancelled = %v, want ErrInvalidState", err)
	}
}

func TestCompletedCannotBeCancelled(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(13, 0, 30), "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if err := fx.manager.Complete(ctx, id); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := fx.manager.Cancel(ctx, id); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Cancel completed = %v, want ErrInvalidState", err)
	}
	if err := fx.manager.Complete(ctx, id); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Complete = %v, want ErrInvalidState", err)
	}
}

func TestRescheduleConflictLeavesOriginal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 0, 30), ""); err != nil {
		t.Fatalf("Book blocker: %v", err)
	}

	id, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(14, 0, 30), "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	err = fx.manager.Reschedule(ctx, id, slot(9, 15, 30))
	if !errors.Is(err, ErrSchedulingConflict) {
		t.Fatalf("Reschedule into conflict = %v, want ErrSchedulingConflict", err)
	}

	appt, err := fx.manager.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := slot(14, 0, 30); !appt.Start.Equal(want.Start) || !appt.End.Equal(want.End) {
		t.Error("failed reschedule moved the appointment")
	}
}

func TestRescheduleToOwnSlot(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(15, 0, 30), "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	// Shifting within the original interval must not conflict with
	// itself.
	if err := fx.manager.Reschedule(ctx, id, slot(15, 15, 30)); err != nil {
		t.Errorf("Reschedule overlapping self = %v, want nil", err)
	}
}

func TestBookRejectsInactiveProvider(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.providers.Deactivate(ctx, fx.providerID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	_, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 0, 30), "")
	if !errors.Is(err, ErrProviderInactive) {
		t.Errorf("Book with inactive provider = %v, want ErrProviderInactive", err)
	}
}

func TestBookRejectsArchivedPatient(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.patients.Archive(ctx, fx.patientID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	_, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 0, 30), "")
	if !errors.Is(err, dualstore.ErrNotFound) {
		t.Errorf("Book with archived patient = %v, want ErrNotFound", err)
	}
}

func TestBookRejectsInvertedInterval(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	iv := slot(9, 0, 30)
	iv.Start, iv.End = iv.End, iv.Start
	_, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", iv, "")

	var verr *dualstore.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Book with inverted interval = %v, want ValidationError", err)
	}
}

func TestListByDate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.manager.Book(ctx, fx.patientID, fx.providerID, "", slot(9, 0, 30), ""); err != nil {
		t.Fatalf("Book: %v", err)
	}

	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	appts, err := fx.manager.ListByDate(ctx, day)
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(appts) != 1 {
		t.Errorf("ListByDate returned %d appointments, want 1", len(appts))
	}

	appts, err = fx.manager.ListByDate(ctx, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(appts) != 0 {
		t.Errorf("ListByDate next day returned %d appointments, want 0", len(appts))
	}
}

func TestOverlaps(t *testing.T) {
	base := slot(9, 0, 60)
	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", slot(9, 0, 60), true},
		{"contained", slot(9, 15, 15), true},
		{"straddles start", slot(8, 30, 45), true},
		{"straddles end", slot(9, 45, 30), true},
		{"touches end", slot(10, 0, 30), false},
		{"touches start", slot(8, 0, 60), false},
		{"disjoint", slot(12, 0, 30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}
