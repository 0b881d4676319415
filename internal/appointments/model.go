package appointments

import "time"

// Status values stored on appointments.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Appointment is one scheduled visit.
type Appointment struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	DoctorID     string    `json:"doctor_id"`
	PatientName  string    `json:"patient_name,omitempty"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	Time         time.Time `json:"appointment_time"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Position is a patient's place in today's queue.
type Position struct {
	Appointment   Appointment
	TokenNumber   int
	PeopleAhead   int
	EstimatedWait time.Duration
}

// PositionIn locates patientID's first appointment in a chronologically
// ordered queue. The token number is 1-based; the wait estimate multiplies
// the people ahead by the average consultation length.
func PositionIn(queue []Appointment, patientID string, avgConsultation time.Duration) (Position, bool) {
	if avgConsultation <= 0 {
		avgConsultation = 15 * time.Minute
	}
	for i, appt := range queue {
		if appt.PatientID != patientID {
			continue
		}
		return Position{
			Appointment:   appt,
			TokenNumber:   i + 1,
			PeopleAhead:   i,
			EstimatedWait: time.Duration(i) * avgConsultation,
		}, true
	}
	return Position{}, false
}

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
