package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
)

var (
	ErrSchedulingConflict = errors.New("interval overlaps an existing appointment")
	ErrInvalidState       = errors.New("operation not permitted in current appointment state")
	ErrProviderInactive   = errors.New("provider is not accepting bookings")
)

type Manager interface {
	Book(ctx context.Context, patientID, providerID, department string, iv Interval, notes string) (string, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Cancel(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, iv Interval) error
	List(ctx context.Context) ([]*Appointment, error)
	ListByProvider(ctx context.Context, providerID string) ([]*Appointment, error)
	ListByDate(ctx context.Context, day time.Time) ([]*Appointment, error)
}

type manager struct {
	store     *dualstore.Store[*Appointment]
	patients  patient.Service
	providers provider.Service
	audit     audit.Service
}

func NewManager(store *dualstore.Store[*Appointment], patients patient.Service, providers provider.Service, auditService audit.Service) Manager {
	return &manager{
		store:     store,
		patients:  patients,
		providers: providers,
		audit:     auditService,
	}
}

func (m *manager) Book(ctx context.Context, patientID, providerID, department string, iv Interval, notes string) (string, error) {
	if !iv.valid() {
		return "", &dualstore.ValidationError{Fields: []string{"interval"}}
	}

	p, err := m.patients.Get(ctx, patientID)
	if err != nil {
		return "", err
	}
	if p.Archived {
		return "", dualstore.ErrNotFound
	}

	prov, err := m.providers.Get(ctx, providerID)
	if err != nil {
		return "", err
	}
	if !prov.IsActive() {
		return "", ErrProviderInactive
	}

	if err := m.checkConflicts(patientID, providerID, iv, ""); err != nil {
		return "", err
	}

	now := time.Now()
	appt := &Appointment{
		PatientID:  patientID,
		ProviderID: providerID,
		Department: department,
		Start:      iv.Start,
		End:        iv.End,
		Status:     StatusScheduled,
		Notes:      notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, err := m.store.Put(appt)
	if err != nil {
		return "", err
	}

	m.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "BOOK",
		Resource:   "appointment",
		ResourceID: id,
		Status:     "success",
	})
	return id, nil
}

func (m *manager) Get(ctx context.Context, id string) (*Appointment, error) {
	return m.store.Get(id)
}

// Cancel transitions the appointment to cancelled. Cancelling an
// already-cancelled appointment is a no-op, not an error.
func (m *manager) Cancel(ctx context.Context, id string) error {
	appt, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if appt.Status == StatusCancelled {
		return nil
	}
	if appt.Status == StatusCompleted {
		return ErrInvalidState
	}

	appt.Status = StatusCancelled
	appt.UpdatedAt = time.Now()
	if _, err := m.store.Put(appt); err != nil {
		return err
	}

	m.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "CANCEL",
		Resource:   "appointment",
		ResourceID: id,
		Status:     "success",
	})
	return nil
}

// Complete marks a scheduled appointment completed, which makes it
// billable.
func (m *manager) Complete(ctx context.Context, id string) error {
	appt, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if appt.Status != StatusScheduled {
		return ErrInvalidState
	}

	appt.Status = StatusCompleted
	appt.UpdatedAt = time.Now()
	if _, err := m.store.Put(appt); err != nil {
		return err
	}

	m.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "COMPLETE",
		Resource:   "appointment",
		ResourceID: id,
		Status:     "success",
	})
	return nil
}

// Reschedule moves a scheduled appointment to a new interval in one
// store mutation. When the new slot conflicts, the original booking is
// left untouched.
func (m *manager) Reschedule(ctx context.Context, id string, iv Interval) error {
	if !iv.valid() {
		return &dualstore.ValidationError{Fields: []string{"interval"}}
	}

	appt, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if appt.Status != StatusScheduled {
		return ErrInvalidState
	}

	if err := m.checkConflicts(appt.PatientID, appt.ProviderID, iv, id); err != nil {
		return err
	}

	appt.Start = iv.Start
	appt.End = iv.End
	appt.UpdatedAt = time.Now()
	if _, err := m.store.Put(appt); err != nil {
		return err
	}

	m.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "RESCHEDULE",
		Resource:   "appointment",
		ResourceID: id,
		Status:     "success",
	})
	return nil
}

func (m *manager) List(ctx context.Context) ([]*Appointment, error) {
	return m.store.List(nil), nil
}

func (m *manager) ListByProvider(ctx context.Context, providerID string) ([]*Appointment, error) {
	return m.store.List(func(a *Appointment) bool {
		return a.ProviderID == providerID
	}), nil
}

func (m *manager) ListByDate(ctx context.Context, day time.Time) ([]*Appointment, error) {
	y, mo, d := day.Date()
	return m.store.List(func(a *Appointment) bool {
		ay, amo, ad := a.Start.Date()
		return ay == y && amo == mo && ad == d
	}), nil
}

// checkConflicts scans non-cancelled appointments sharing the provider
// or the patient. A linear scan is fine at this scale; correctness for
// back-to-back slots comes from the half-open interval overlap test.
// exclude skips the appointment being rescheduled.
func (m *manager) checkConflicts(patientID, providerID string, iv Interval, exclude string) error {
	conflicts := m.store.List(func(a *Appointment) bool {
		if a.ID == exclude || a.Status == StatusCancelled {
			return false
		}
		if a.ProviderID != providerID && a.PatientID != patientID {
			return false
		}
		return a.Interval().Overlaps(iv)
	})
	if len(conflicts) > 0 {
		return ErrSchedulingConflict
	}
	return nil
}

func userID(ctx context.Context) string {
	if id, ok := ctx.Value("user_id").(string); ok {
		return id
	}
	return ""
}
