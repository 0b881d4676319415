// Package reports renders patient history workbooks for the /report admin command.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xuri/excelize/v2"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	// SheetName is the single worksheet in every report.
	SheetName = "Patient Report"
	// MIMEType is the content type used for upload and archive.
	MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// RecentAppointments is how many visits a report lists.
	RecentAppointments = 5

	dateLayout = "02/01/2006"
	timeLayout = "03:04 pm"
)

var ErrPatientRequired = errors.New("reports: patient required")

// AppointmentSource lists a patient's visits, newest first.
type AppointmentSource interface {
	ForPatient(ctx context.Context, patientID string, limit int) ([]appointments.Appointment, error)
}

// S3API is the subset of the S3 client used for archiving.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Report is a rendered workbook on local disk. Callers Remove it once sent.
type Report struct {
	Path       string
	Filename   string
	Data       []byte
	ArchiveKey string
}

// Remove deletes the temp file. Missing files are not an error.
func (r *Report) Remove() error {
	if r == nil || r.Path == "" {
		return nil
	}
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reports: remove %s: %w", r.Path, err)
	}
	return nil
}

// Generator builds reports and optionally archives them to S3.
type Generator struct {
	appts  AppointmentSource
	s3     S3API
	bucket string
	dir    string
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

type Option func(*Generator)

// WithArchive enables S3 archiving when bucket is non-empty.
func WithArchive(client S3API, bucket string) Option {
	return func(g *Generator) {
		g.s3 = client
		g.bucket = bucket
	}
}

// WithTempDir overrides os.TempDir for the transient files.
func WithTempDir(dir string) Option {
	return func(g *Generator) { g.dir = dir }
}

func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGenerator(appts AppointmentSource, opts ...Option) *Generator {
	if appts == nil {
		panic("reports: appointment source required")
	}
	g := &Generator{
		appts:  appts,
		loc:    time.UTC,
		now:    time.Now,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Filename is the document name shown in WhatsApp.
func Filename(p *patients.Patient) string {
	name := strings.Join(strings.Fields(p.Name), "_")
	if name == "" {
		name = "Patient"
	}
	return name + "_Report.xlsx"
}

// Generate renders the workbook, writes it to a temp file and archives it.
// Archive failures are logged; the local report is still returned.
func (g *Generator) Generate(ctx context.Context, doctor *doctors.Doctor, patient *patients.Patient) (*Report, error) {
	if patient == nil {
		return nil, ErrPatientRequired
	}
	visits, err := g.appts.ForPatient(ctx, patient.ID, RecentAppointments)
	if err != nil {
		return nil, fmt.Errorf("reports: load appointments: %w", err)
	}

	now := g.now().In(g.loc)
	data, err := g.render(doctor, patient, visits, now)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(g.dir, "patient_report_*.xlsx")
	if err != nil {
		return nil, fmt.Errorf("reports: create temp file: %w", err)
	}
	report := &Report{Path: tmp.Name(), Filename: Filename(patient), Data: data}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		report.Remove()
		return nil, fmt.Errorf("reports: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		report.Remove()
		return nil, fmt.Errorf("reports: close temp file: %w", err)
	}

	if key, err := g.archive(ctx, doctor, patient, data, now); err != nil {
		g.logger.Warn("report archive failed", "patient_id", patient.ID, "error", err)
	} else {
		report.ArchiveKey = key
	}
	return report, nil
}

func (g *Generator) archive(ctx context.Context, doctor *doctors.Doctor, patient *patients.Patient, data []byte, now time.Time) (string, error) {
	if g.s3 == nil || g.bucket == "" {
		return "", nil
	}
	doctorID := patient.DoctorID
	if doctor != nil {
		doctorID = doctor.ID
	}
	key := fmt.Sprintf("reports/%s/%s/%d.xlsx", doctorID, patient.ID, now.Unix())
	_, err := g.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(MIMEType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	g.logger.Info("archived patient report", "patient_id", patient.ID, "s3_key", key)
	return key, nil
}

func (g *Generator) render(doctor *doctors.Doctor, patient *patients.Patient, visits []appointments.Appointment, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("reports: rename sheet: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "#2563EB"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("reports: title style: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2563EB"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reports: header style: %w", err)
	}

	w := &sheetWriter{f: f}
	specialization := "Medical Clinic"
	clinicPhone := ""
	if doctor != nil {
		if strings.TrimSpace(doctor.Specialization) != "" {
			specialization = doctor.Specialization
		}
		clinicPhone = doctor.ClinicPhone
		if clinicPhone == "" {
			clinicPhone = doctor.PhoneNumber
		}
	}

	w.row(doctor.DisplayClinicName())
	w.style("A1", "D1", title)
	w.merge("A1", "D1")
	w.row(specialization)
	if clinicPhone != "" {
		w.row("Phone: " + clinicPhone)
	}
	w.blank()
	w.row("Patient Medical Report")
	w.blank()
	w.row("Patient Information")
	w.row("Name:", orNA(patient.Name))
	w.row("Phone:", orNA(patient.PhoneNumber))
	w.row("Patient ID:", patient.ID)
	w.row("First Visit:", formatDate(patient.CreatedAt, g.loc))
	w.row("Last Visit:", formatDate(patient.LastSeenAt, g.loc))
	w.blank()
	w.row("Recent Appointments")

	if len(visits) == 0 {
		w.row("No appointments found.")
	} else {
		top := w.next
		w.row("#", "Date", "Time", "Status")
		w.style(cellName(1, top), cellName(4, top), header)
		for i, a := range visits {
			at := a.Time.In(g.loc)
			w.row(i+1, at.Format(dateLayout), at.Format(timeLayout), strings.ToUpper(a.Status))
		}
	}
	w.blank()
	w.row("Report generated on: " + now.Format(dateLayout+", "+timeLayout))
	w.row("This is a computer-generated report.")

	if w.err != nil {
		return nil, fmt.Errorf("reports: write cells: %w", w.err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 16); err != nil {
		return nil, fmt.Errorf("reports: column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "D", 22); err != nil {
		return nil, fmt.Errorf("reports: column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("reports: encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f    *excelize.File
	next int
	err  error
}

func (w *sheetWriter) row(values ...any) {
	if w.next == 0 {
		w.next = 1
	}
	for i, v := range values {
		if w.err != nil {
			return
		}
		w.err = w.f.SetCellValue(SheetName, cellName(i+1, w.next), v)
	}
	w.next++
}

func (w *sheetWriter) blank() {
	if w.next == 0 {
		w.next = 1
	}
	w.next++
}

func (w *sheetWriter) style(from, to string, id int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(SheetName, from, to, id)
	}
}

func (w *sheetWriter) merge(from, to string) {
	if w.err == nil {
		w.err = w.f.MergeCell(SheetName, from, to)
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.In(loc).Format(dateLayout)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
