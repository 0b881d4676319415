// Package booking runs the message-driven appointment booking dialog.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// CancelKeyword aborts the dialog from any step.
const CancelKeyword = "cancel"

// BookingNote is stored on appointments created by this flow.
const BookingNote = "Booked via WhatsApp conversational booking"

// Clinic hours for booking: [OpenHour, CloseHour) on the hour component only.
const (
	OpenHour  = 9
	CloseHour = 18
)

// Transition names a state machine edge; it is also the metrics label.
type Transition string

const (
	TransitionStarted    Transition = "started"
	TransitionBooked     Transition = "booked"
	TransitionCancelled  Transition = "cancelled"
	TransitionUnparsed   Transition = "retry_unparseable"
	TransitionOutOfHours Transition = "retry_out_of_hours"
	TransitionSunday     Transition = "retry_sunday"
	TransitionCreateFail Transition = "retry_create_failed"
	TransitionReset      Transition = "reset"
)

// Outcome is the result of one step.
type Outcome struct {
	Transition  Transition
	Reply       string
	Appointment *appointments.Appointment
}

// Done reports whether the dialog left the booking state.
func (o Outcome) Done() bool {
	switch o.Transition {
	case TransitionBooked, TransitionCancelled, TransitionReset:
		return true
	}
	return false
}

// StateStore persists the patient's conversation state.
type StateStore interface {
	UpdateState(ctx context.Context, id string, state patients.ConversationState, data patients.StateData) error
}

// AppointmentCreator records a booked slot.
type AppointmentCreator interface {
	Create(ctx context.Context, patientID, doctorID string, at time.Time, notes string) (*appointments.Appointment, error)
}

// ErrStateWrite is returned by Start when the booking state could not be stored.
var ErrStateWrite = errors.New("booking: write conversation state")

// Machine drives the booking dialog. It holds no per-patient state itself.
type Machine struct {
	states       StateStore
	appointments AppointmentCreator
	parser       *Parser
	loc          *time.Location
	now          func() time.Time
	logger       *logging.Logger
	metrics      *metrics.BotMetrics
}

type Option func(*Machine)

// WithClock injects the time source used for "now" and parse anchoring.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(m *Machine) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.BotMetrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// NewMachine wires the booking dialog.
func NewMachine(states StateStore, appts AppointmentCreator, opts ...Option) *Machine {
	if states == nil {
		panic("booking: state store required")
	}
	if appts == nil {
		panic("booking: appointment creator required")
	}
	m := &Machine{
		states:       states,
		appointments: appts,
		parser:       NewParser(),
		loc:          time.UTC,
		now:          time.Now,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves an idle patient into awaiting_datetime and returns the prompt.
func (m *Machine) Start(ctx context.Context, patient *patients.Patient) (Outcome, error) {
	if patient == nil {
		return Outcome{}, errors.New("booking: patient required")
	}
	started := m.now()
	data := patients.StateData{Step: patients.StepAwaitingDateTime, StartedAt: &started}
	if err := m.states.UpdateState(ctx, patient.ID, patients.StateBookingAppointment, data); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	patient.State = patients.StateBookingAppointment
	patient.StateData = data
	m.metrics.ObserveBookingTransition(string(TransitionStarted))
	return Outcome{Transition: TransitionStarted, Reply: promptMessage}, nil
}

// Handle advances the dialog with one inbound message.
func (m *Machine) Handle(ctx context.Context, patient *patients.Patient, doctor *doctors.Doctor, text string) Outcome {
	out := m.handle(ctx, patient, doctor, text)
	m.metrics.ObserveBookingTransition(string(out.Transition))
	m.logger.Info("booking step handled",
		"patient_id", patient.ID,
		"transition", out.Transition,
	)
	return out
}

func (m *Machine) handle(ctx context.Context, patient *patients.Patient, doctor *doctors.Doctor, text string) Outcome {
	if strings.ToLower(strings.TrimSpace(text)) == CancelKeyword {
		m.reset(ctx, patient)
		return Outcome{Transition: TransitionCancelled, Reply: cancelledMessage}
	}

	if patient.State != patients.StateBookingAppointment || patient.StateData.Step != patients.StepAwaitingDateTime {
		m.logger.Warn("unknown booking step, resetting",
			"patient_id", patient.ID,
			"state", patient.State,
			"step", patient.StateData.Step,
		)
		m.reset(ctx, patient)
		return Outcome{Transition: TransitionReset, Reply: resetMessage}
	}

	now := m.now().In(m.loc)
	at, ok := m.parser.Parse(text, now)
	if !ok || !at.After(now) {
		return Outcome{Transition: TransitionUnparsed, Reply: unparsedMessage}
	}
	at = at.In(m.loc)
	if at.Hour() < OpenHour || at.Hour() >= CloseHour {
		return Outcome{Transition: TransitionOutOfHours, Reply: outOfHoursMessage}
	}
	if at.Weekday() == time.Sunday {
		return Outcome{Transition: TransitionSunday, Reply: sundayMessage}
	}

	appt, err := m.appointments.Create(ctx, patient.ID, doctor.ID, at, BookingNote)
	if err != nil {
		m.logger.Error("failed to create appointment", "patient_id", patient.ID, "doctor_id", doctor.ID, "error", err)
		return Outcome{Transition: TransitionCreateFail, Reply: createFailedMessage(doctor)}
	}

	m.reset(ctx, patient)
	return Outcome{
		Transition:  TransitionBooked,
		Reply:       ConfirmationMessage(at, doctor),
		Appointment: appt,
	}
}

// reset clears the dialog. A failed write is logged; the next message will
// see the stale state and either retry or reset again.
func (m *Machine) reset(ctx context.Context, patient *patients.Patient) {
	if err := m.states.UpdateState(ctx, patient.ID, patients.StateIdle, patients.StateData{}); err != nil {
		m.logger.Error("failed to reset conversation state", "patient_id", patient.ID, "error", err)
		return
	}
	patient.State = patients.StateIdle
	patient.StateData = patients.StateData{}
}
