package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"opdportal/models"
	"opdportal/services/api"

	"go.uber.org/zap"
)

// Step is one of the five ordered wizard steps.
type Step int

const (
	StepHospital Step = iota + 1
	StepDepartment
	StepDoctor
	StepSchedule
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepHospital:
		return "hospital"
	case StepDepartment:
		return "department"
	case StepDoctor:
		return "doctor"
	case StepSchedule:
		return "schedule"
	case StepConfirm:
		return "confirm"
	}
	return "unknown"
}

// Phase is the display state of the wizard.
type Phase string

const (
	PhaseEditing      Phase = "editing"
	PhaseSuccess      Phase = "success"
	PhaseLimitReached Phase = "limit_reached"
)

// PlaceholderPatientAge is sent as the patient's age on every booking. The
// portal never collects an age.
const PlaceholderPatientAge = 25

const dateLayout = "2006-01-02"

// Draft holds the selections made so far.
type Draft struct {
	HospitalID string `json:"hospitalId"`
	Department string `json:"department"`
	DoctorID   string `json:"doctorId"`
	Date       string `json:"date"`
	TimeSlot   string `json:"timeSlot"`
}

// DirectoryAPI serves the dependent fetches of steps 1 to 3.
type DirectoryAPI interface {
	ListHospitals(ctx context.Context) ([]models.Hospital, error)
	GetHospital(ctx context.Context, id string) (models.Hospital, error)
	ListDoctors(ctx context.Context, hospitalID, department string) ([]models.Doctor, error)
}

// BookingAPI submits the assembled request.
type BookingAPI interface {
	CreateBooking(ctx context.Context, in models.BookingRequest) (models.Appointment, error)
}

type API interface {
	DirectoryAPI
	BookingAPI
}

// CrowdSource exposes the live crowd entry of a doctor.
type CrowdSource interface {
	Get(id string) (models.CrowdEntry, bool)
}

type Options struct {
	RegistrationFee float64
	DefaultSlots    []string
	Now             func() time.Time
}

// State is a read-only copy of the wizard.
type State struct {
	Step        Step                `json:"step"`
	StepName    string              `json:"stepName"`
	Phase       Phase               `json:"phase"`
	Draft       Draft               `json:"draft"`
	Hospitals   []models.Hospital   `json:"hospitals"`
	Departments []string            `json:"departments"`
	Doctors     []models.Doctor     `json:"doctors"`
	Fees        *models.Fees        `json:"fees,omitempty"`
	CanContinue bool                `json:"canContinue"`
	Submitting  bool                `json:"submitting"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
	LastError   string              `json:"lastError,omitempty"`
}

// DoctorOption is a doctor card with its live crowd badge.
type DoctorOption struct {
	Doctor models.Doctor      `json:"doctor"`
	Crowd  *models.CrowdEntry `json:"crowd,omitempty"`
}

// Wizard drives the five-step OPD booking flow. Dependent fetches are tagged
// with a generation; a response whose generation is no longer current is
// discarded.
type Wizard struct {
	api    API
	crowd  CrowdSource
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	step        Step
	phase       Phase
	draft       Draft
	hospitals   []models.Hospital
	departments []string
	doctors     []models.Doctor
	appointment *models.Appointment
	lastError   string
	submitting  bool

	epoch         uint64
	hospitalGen   uint64
	departmentGen uint64

	listeners []func(State)
}

func NewWizard(client API, crowd CrowdSource, opts Options, logger *zap.Logger) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Wizard{api: client, crowd: crowd, opts: opts, logger: logger}
	w.resetLocked()
	return w
}

func (w *Wizard) resetLocked() {
	w.step = StepHospital
	w.phase = PhaseEditing
	w.draft = Draft{Date: w.today()}
	w.hospitals = nil
	w.departments = nil
	w.doctors = nil
	w.appointment = nil
	w.lastError = ""
	w.submitting = false
	w.epoch++
	w.hospitalGen++
	w.departmentGen++
}

func (w *Wizard) today() string {
	return w.opts.Now().Format(dateLayout)
}

// OnChange registers a listener called with a fresh state after every change.
func (w *Wizard) OnChange(fn func(State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Wizard) stateLocked() State {
	s := State{
		Step:        w.step,
		StepName:    w.step.String(),
		Phase:       w.phase,
		Draft:       w.draft,
		Hospitals:   append([]models.Hospital(nil), w.hospitals...),
		Departments: append([]string(nil), w.departments...),
		Doctors:     append([]models.Doctor(nil), w.doctors...),
		CanContinue: w.phase == PhaseEditing && w.step < StepConfirm && w.satisfiedLocked(w.step),
		Submitting:  w.submitting,
		LastError:   w.lastError,
	}
	if doctor, ok := w.selectedDoctorLocked(); ok {
		fees := Quote(w.opts.RegistrationFee, doctor)
		s.Fees = &fees
	}
	if w.appointment != nil {
		appt := *w.appointment
		s.Appointment = &appt
	}
	return s
}

func (w *Wizard) notify() {
	w.mu.Lock()
	listeners := append([]func(State){}, w.listeners...)
	state := w.stateLocked()
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

func (w *Wizard) editableAt(step Step) error {
	if w.phase != PhaseEditing {
		return ErrWrongPhase
	}
	if w.step != step {
		return newStepError(w.step, fmt.Sprintf("%s can only be chosen at the %s step", step, step))
	}
	return nil
}

// LoadHospitals fetches the directory for step 1. On failure the previous
// list is kept.
func (w *Wizard) LoadHospitals(ctx context.Context) error {
	w.mu.Lock()
	epoch := w.epoch
	w.mu.Unlock()

	hospitals, err := w.api.ListHospitals(ctx)
	if err != nil {
		w.logger.Warn("booking: failed to load hospitals", zap.Error(err))
		return fmt.Errorf("load hospitals: %w", err)
	}

	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return nil
	}
	w.hospitals = hospitals
	w.mu.Unlock()
	w.notify()
	return nil
}

// SelectHospital sets the hospital, clears every downstream selection and
// fetches the hospital's departments.
func (w *Wizard) SelectHospital(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	w.mu.Lock()
	if err := w.editableAt(StepHospital); err != nil {
		w.mu.Unlock()
		return err
	}
	if id == "" {
		w.mu.Unlock()
		return newStepError(StepHospital, "hospital id is required")
	}
	w.draft.HospitalID = id
	w.draft.Department = ""
	w.draft.DoctorID = ""
	w.draft.TimeSlot = ""
	w.departments = nil
	w.doctors = nil
	w.hospitalGen++
	w.departmentGen++
	gen := w.hospitalGen
	w.mu.Unlock()
	w.notify()

	hospital, err := w.api.GetHospital(ctx, id)

	w.mu.Lock()
	if gen != w.hospitalGen {
		w.mu.Unlock()
		w.logger.Debug("booking: discarded stale department list", zap.String("hospitalId", id))
		return nil
	}
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("booking: failed to load departments", zap.String("hospitalId", id), zap.Error(err))
		return fmt.Errorf("load departments: %w", err)
	}
	w.departments = append([]string(nil), hospital.Departments...)
	w.mu.Unlock()
	w.notify()
	return nil
}

// SelectDepartment sets the department, clears the doctor and slot and
// fetches the doctors of the chosen hospital in that department.
func (w *Wizard) SelectDepartment(ctx context.Context, department string) error {
	department = strings.TrimSpace(department)

	w.mu.Lock()
	if err := w.editableAt(StepDepartment); err != nil {
		w.mu.Unlock()
		return err
	}
	if department == "" {
		w.mu.Unlock()
		return newStepError(StepDepartment, "department is required")
	}
	hospitalID := w.draft.HospitalID
	w.draft.Department = department
	w.draft.DoctorID = ""
	w.draft.TimeSlot = ""
	w.doctors = nil
	w.departmentGen++
	gen := w.departmentGen
	w.mu.Unlock()
	w.notify()

	doctors, err := w.api.ListDoctors(ctx, hospitalID, department)

	w.mu.Lock()
	if gen != w.departmentGen {
		w.mu.Unlock()
		w.logger.Debug("booking: discarded stale doctor list",
			zap.String("hospitalId", hospitalID), zap.String("department", department))
		return nil
	}
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("booking: failed to load doctors",
			zap.String("hospitalId", hospitalID), zap.String("department", department), zap.Error(err))
		return fmt.Errorf("load doctors: %w", err)
	}
	filtered := make([]models.Doctor, 0, len(doctors))
	for _, d := range doctors {
		if d.Department != "" && !strings.EqualFold(d.Department, department) {
			continue
		}
		filtered = append(filtered, d)
	}
	w.doctors = filtered
	w.mu.Unlock()
	w.notify()
	return nil
}

// SelectDoctor picks one of the loaded doctors. Changing the doctor clears
// the time slot.
func (w *Wizard) SelectDoctor(id string) error {
	id = strings.TrimSpace(id)

	w.mu.Lock()
	if err := w.editableAt(StepDoctor); err != nil {
		w.mu.Unlock()
		return err
	}
	if !w.hasDoctorLocked(id) {
		w.mu.Unlock()
		return ErrUnknownDoctor
	}
	if w.draft.DoctorID != id {
		w.draft.TimeSlot = ""
	}
	w.draft.DoctorID = id
	w.mu.Unlock()
	w.notify()
	return nil
}

// SelectDate sets the appointment date. Past dates are rejected.
func (w *Wizard) SelectDate(date string) error {
	date = strings.TrimSpace(date)

	w.mu.Lock()
	if err := w.editableAt(StepSchedule); err != nil {
		w.mu.Unlock()
		return err
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil || day.Format(dateLayout) < w.today() {
		w.mu.Unlock()
		return ErrInvalidDate
	}
	w.draft.Date = day.Format(dateLayout)
	w.mu.Unlock()
	w.notify()
	return nil
}

func (w *Wizard) SelectSlot(slot string) error {
	slot = strings.TrimSpace(slot)

	w.mu.Lock()
	if err := w.editableAt(StepSchedule); err != nil {
		w.mu.Unlock()
		return err
	}
	found := false
	for _, s := range w.slotOptionsLocked() {
		if s == slot {
			found = true
			break
		}
	}
	if !found {
		w.mu.Unlock()
		return ErrUnknownSlot
	}
	w.draft.TimeSlot = slot
	w.mu.Unlock()
	w.notify()
	return nil
}

// Next advances one step when the current step's selection is set.
// Otherwise the step is left unchanged and a *StepError is returned.
func (w *Wizard) Next() error {
	w.mu.Lock()
	if w.phase != PhaseEditing {
		w.mu.Unlock()
		return ErrWrongPhase
	}
	if w.step >= StepConfirm {
		w.mu.Unlock()
		return newStepError(w.step, "already at the last step")
	}
	if !w.satisfiedLocked(w.step) {
		step := w.step
		w.mu.Unlock()
		return newStepError(step, fmt.Sprintf("select a %s to continue", step))
	}
	w.step++
	w.mu.Unlock()
	w.notify()
	return nil
}

// Previous moves one step back without clearing anything.
func (w *Wizard) Previous() bool {
	w.mu.Lock()
	if w.phase != PhaseEditing || w.step <= StepHospital {
		w.mu.Unlock()
		return false
	}
	w.step--
	w.mu.Unlock()
	w.notify()
	return true
}

func (w *Wizard) satisfiedLocked(step Step) bool {
	switch step {
	case StepHospital:
		return w.draft.HospitalID != ""
	case StepDepartment:
		return w.draft.Department != ""
	case StepDoctor:
		return w.draft.DoctorID != ""
	case StepSchedule:
		return w.draft.Date != "" && w.draft.TimeSlot != ""
	}
	return true
}

// Submit sends the assembled booking as one request. A daily-limit failure
// moves the wizard to PhaseLimitReached; any other failure keeps it at the
// confirm step for a retry. The backend error is returned unchanged.
func (w *Wizard) Submit(ctx context.Context, user models.SessionUser) (models.Appointment, error) {
	w.mu.Lock()
	if err := w.editableAt(StepConfirm); err != nil {
		w.mu.Unlock()
		return models.Appointment{}, err
	}
	if w.submitting {
		w.mu.Unlock()
		return models.Appointment{}, ErrSubmitInFlight
	}
	for step := StepHospital; step < StepConfirm; step++ {
		if !w.satisfiedLocked(step) {
			w.mu.Unlock()
			return models.Appointment{}, ErrIncompleteDraft
		}
	}
	doctor, ok := w.selectedDoctorLocked()
	if !ok {
		w.mu.Unlock()
		return models.Appointment{}, ErrUnknownDoctor
	}
	req := models.BookingRequest{
		HospitalID:      models.FlexID(w.draft.HospitalID),
		DoctorID:        models.FlexID(w.draft.DoctorID),
		Department:      w.draft.Department,
		AppointmentDate: w.draft.Date,
		TimeSlot:        w.draft.TimeSlot,
		Patient: models.PatientDetails{
			Name:   user.Name,
			Age:    PlaceholderPatientAge,
			Gender: user.Gender,
			Phone:  user.Phone,
		},
		Fees: Quote(w.opts.RegistrationFee, doctor),
	}
	w.submitting = true
	w.lastError = ""
	epoch := w.epoch
	w.mu.Unlock()
	w.notify()

	appt, err := w.api.CreateBooking(ctx, req)

	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return appt, err
	}
	w.submitting = false
	if err != nil {
		w.lastError = api.Message(err)
		if IsDailyLimitExceeded(err) {
			w.phase = PhaseLimitReached
			w.logger.Info("booking: daily limit reached",
				zap.String("userId", user.ID.String()), zap.String("date", req.AppointmentDate))
		} else {
			w.logger.Warn("booking: submit failed", zap.String("userId", user.ID.String()), zap.Error(err))
		}
		w.mu.Unlock()
		w.notify()
		return models.Appointment{}, err
	}
	w.phase = PhaseSuccess
	w.appointment = &appt
	w.mu.Unlock()
	w.logger.Info("booking: appointment created",
		zap.String("appointmentId", appt.ID.String()),
		zap.String("doctorId", req.DoctorID.String()),
		zap.Float64("total", req.Fees.TotalAmount))
	w.notify()
	return appt, nil
}

// ChangeDate leaves the limit-reached state and returns to the schedule step
// with every selection intact.
func (w *Wizard) ChangeDate() error {
	w.mu.Lock()
	if w.phase != PhaseLimitReached {
		w.mu.Unlock()
		return ErrWrongPhase
	}
	w.phase = PhaseEditing
	w.step = StepSchedule
	w.lastError = ""
	w.mu.Unlock()
	w.notify()
	return nil
}

// Reset returns the wizard to an empty draft at step 1. In-flight fetches and
// submissions started before the reset are discarded.
func (w *Wizard) Reset() {
	w.mu.Lock()
	w.resetLocked()
	w.mu.Unlock()
	w.notify()
}

// DoctorOptions joins every loaded doctor with its current crowd entry.
func (w *Wizard) DoctorOptions() []DoctorOption {
	w.mu.Lock()
	doctors := append([]models.Doctor(nil), w.doctors...)
	w.mu.Unlock()

	out := make([]DoctorOption, 0, len(doctors))
	for _, d := range doctors {
		opt := DoctorOption{Doctor: d}
		if w.crowd != nil {
			if entry, ok := w.crowd.Get(d.ID.String()); ok {
				opt.Crowd = &entry
			}
		}
		out = append(out, opt)
	}
	return out
}

// SlotOptions lists the bookable slots of the selected doctor, falling back
// to the configured defaults.
func (w *Wizard) SlotOptions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.slotOptionsLocked()...)
}

func (w *Wizard) slotOptionsLocked() []string {
	if doctor, ok := w.selectedDoctorLocked(); ok && len(doctor.AvailableSlots) > 0 {
		return doctor.AvailableSlots
	}
	return w.opts.DefaultSlots
}

func (w *Wizard) selectedDoctorLocked() (models.Doctor, bool) {
	if w.draft.DoctorID == "" {
		return models.Doctor{}, false
	}
	for _, d := range w.doctors {
		if d.ID.String() == w.draft.DoctorID {
			return d, true
		}
	}
	return models.Doctor{}, false
}

func (w *Wizard) hasDoctorLocked(id string) bool {
	if id == "" {
		return false
	}
	for _, d := range w.doctors {
		if d.ID.String() == id {
			return true
		}
	}
	return false
}
