package billing

import (
	"context"
	"errors"
	"time"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/schedule"
)

var ErrInvalidState = errors.New("operation not permitted in current bill state")

// Bills become due this long after generation.
const paymentTerm = 30 * 24 * time.Hour

type Engine interface {
	Generate(ctx context.Context, appointmentID string, items []LineItem) (string, error)
	Get(ctx context.Context, id string) (*Bill, error)
	MarkPaid(ctx context.Context, id string) error
	Void(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Bill, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Bill, error)
}

// engine reads appointments through the record store directly; the
// schedule manager and the billing engine only share ids.
type engine struct {
	store        *dualstore.Store[*Bill]
	appointments *dualstore.Store[*schedule.Appointment]
	audit        audit.Service
}

func NewEngine(store *dualstore.Store[*Bill], appointments *dualstore.Store[*schedule.Appointment], auditService audit.Service) Engine {
	return &engine{
		store:        store,
		appointments: appointments,
		audit:        auditService,
	}
}

// Generate derives a pending bill from a completed appointment. The
// total is computed from the line items, never taken from the caller.
func (e *engine) Generate(ctx context.Context, appointmentID string, items []LineItem) (string, error) {
	appt, err := e.appointments.Get(appointmentID)
	if err != nil {
		return "", err
	}
	if appt.Status != schedule.StatusCompleted {
		return "", ErrInvalidState
	}

	now := time.Now()
	bill := &Bill{
		PatientID:     appt.PatientID,
		AppointmentID: appointmentID,
		LineItems:     items,
		Total:         Sum(items),
		Status:        StatusPending,
		BillDate:      now,
		DueDate:       now.Add(paymentTerm),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	id, err := e.store.Put(bill)
	if err != nil {
		return "", err
	}

	e.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "GENERATE",
		Resource:   "bill",
		ResourceID: id,
		Status:     "success",
	})
	return id, nil
}

func (e *engine) Get(ctx context.Context, id string) (*Bill, error) {
	return e.store.Get(id)
}

func (e *engine) MarkPaid(ctx context.Context, id string) error {
	return e.transition(ctx, id, StatusPaid, "MARK_PAID")
}

// Void retires a pending bill after a billing error. Paid bills cannot
// be voided and no bill is ever physically deleted.
func (e *engine) Void(ctx context.Context, id string) error {
	return e.transition(ctx, id, StatusVoid, "VOID")
}

func (e *engine) transition(ctx context.Context, id string, to Status, action string) error {
	bill, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if bill.Status != StatusPending {
		return ErrInvalidState
	}

	bill.Status = to
	bill.UpdatedAt = time.Now()
	if _, err := e.store.Put(bill); err != nil {
		return err
	}

	e.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     action,
		Resource:   "bill",
		ResourceID: id,
		Status:     "success",
	})
	return nil
}

func (e *engine) List(ctx context.Context) ([]*Bill, error) {
	return e.store.List(nil), nil
}

func (e *engine) ListByPatient(ctx context.Context, patientID string) ([]*Bill, error) {
	return e.store.List(func(b *Bill) bool {
		return b.PatientID == patientID
	}), nil
}

func userID(ctx context.Context) string {
	if id, ok := ctx.Value("user_id").(string); ok {
		return id
	}
	return ""
}
