package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"opdportal/models"
	"opdportal/services/api"

	"go.uber.org/zap"
)

type fakeAPI struct {
	listHospitalsFn func(ctx context.Context) ([]models.Hospital, error)
	getHospitalFn   func(ctx context.Context, id string) (models.Hospital, error)
	listDoctorsFn   func(ctx context.Context, hospitalID, department string) ([]models.Doctor, error)
	createBookingFn func(ctx context.Context, in models.BookingRequest) (models.Appointment, error)
}

func (f *fakeAPI) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	if f.listHospitalsFn == nil {
		return nil, nil
	}
	return f.listHospitalsFn(ctx)
}

func (f *fakeAPI) GetHospital(ctx context.Context, id string) (models.Hospital, error) {
	return f.getHospitalFn(ctx, id)
}

func (f *fakeAPI) ListDoctors(ctx context.Context, hospitalID, department string) ([]models.Doctor, error) {
	return f.listDoctorsFn(ctx, hospitalID, department)
}

func (f *fakeAPI) CreateBooking(ctx context.Context, in models.BookingRequest) (models.Appointment, error) {
	return f.createBookingFn(ctx, in)
}

type fakeCrowd map[string]models.CrowdEntry

func (f fakeCrowd) Get(id string) (models.CrowdEntry, bool) {
	e, ok := f[id]
	return e, ok
}

var (
	fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	patient  = models.SessionUser{ID: "u1", Name: "Asha", Gender: "female", Phone: "555", Role: models.RolePatient}
)

func directoryAPI() *fakeAPI {
	return &fakeAPI{
		getHospitalFn: func(_ context.Context, id string) (models.Hospital, error) {
			switch id {
			case "H":
				return models.Hospital{ID: "H", Name: "City General", Departments: []string{"Cardiology"}}, nil
			case "H2":
				return models.Hospital{ID: "H2", Name: "North Clinic", Departments: []string{"ENT", "Dermatology"}}, nil
			}
			return models.Hospital{}, &api.Error{Status: http.StatusNotFound, Message: "hospital not found"}
		},
		listDoctorsFn: func(_ context.Context, hospitalID, department string) ([]models.Doctor, error) {
			if hospitalID == "H" && department == "Cardiology" {
				return []models.Doctor{{ID: "Dr", Name: "Dr. Rao", Department: "Cardiology", ConsultationFee: 500}}, nil
			}
			return nil, nil
		},
	}
}

func newTestWizard(client API, crowd CrowdSource) *Wizard {
	return NewWizard(client, crowd, Options{
		RegistrationFee: DefaultRegistrationFee,
		DefaultSlots:    []string{"09:00", "10:00", "11:00"},
		Now:             func() time.Time { return fixedNow },
	}, zap.NewNop())
}

func mustDo(t *testing.T, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}

func advanceToConfirm(t *testing.T, w *Wizard) {
	t.Helper()
	ctx := context.Background()
	mustDo(t, "select hospital", w.SelectHospital(ctx, "H"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select department", w.SelectDepartment(ctx, "Cardiology"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select doctor", w.SelectDoctor("Dr"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select date", w.SelectDate("2026-03-12"))
	mustDo(t, "select slot", w.SelectSlot("10:00"))
	mustDo(t, "next", w.Next())
	if got := w.State().Step; got != StepConfirm {
		t.Fatalf("expected confirm step, got %v", got)
	}
}

func TestEndToEndBooking(t *testing.T) {
	client := directoryAPI()
	var sent models.BookingRequest
	token := 7
	client.createBookingFn = func(_ context.Context, in models.BookingRequest) (models.Appointment, error) {
		sent = in
		return models.Appointment{ID: "a1", Status: models.StatusBooked, TokenNumber: &token, Fees: in.Fees}, nil
	}
	w := newTestWizard(client, nil)
	advanceToConfirm(t, w)

	appt, err := w.Submit(context.Background(), patient)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sent.Fees.TotalAmount != 520 || sent.Fees.RegistrationFee != 20 || sent.Fees.ConsultationFee != 500 {
		t.Fatalf("unexpected fees %+v", sent.Fees)
	}
	if sent.HospitalID != "H" || sent.DoctorID != "Dr" || sent.Department != "Cardiology" {
		t.Fatalf("unexpected ids %+v", sent)
	}
	if sent.AppointmentDate != "2026-03-12" || sent.TimeSlot != "10:00" {
		t.Fatalf("unexpected schedule %q %q", sent.AppointmentDate, sent.TimeSlot)
	}
	want := models.PatientDetails{Name: "Asha", Age: PlaceholderPatientAge, Gender: "female", Phone: "555"}
	if sent.Patient != want {
		t.Fatalf("unexpected patient %+v", sent.Patient)
	}

	state := w.State()
	if state.Phase != PhaseSuccess || state.Appointment == nil || *state.Appointment.TokenNumber != 7 {
		t.Fatalf("unexpected state %+v", state)
	}
	if appt.ID != "a1" {
		t.Fatalf("unexpected appointment %+v", appt)
	}
}

func TestHospitalChangeClearsDownstream(t *testing.T) {
	w := newTestWizard(directoryAPI(), nil)
	ctx := context.Background()
	mustDo(t, "select hospital", w.SelectHospital(ctx, "H"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select department", w.SelectDepartment(ctx, "Cardiology"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select doctor", w.SelectDoctor("Dr"))

	w.Previous()
	w.Previous()
	mustDo(t, "reselect hospital", w.SelectHospital(ctx, "H2"))

	state := w.State()
	if state.Draft.Department != "" || state.Draft.DoctorID != "" || state.Draft.TimeSlot != "" {
		t.Fatalf("downstream selections survived: %+v", state.Draft)
	}
	if len(state.Doctors) != 0 {
		t.Fatalf("doctor list survived: %+v", state.Doctors)
	}
	if len(state.Departments) != 2 || state.Departments[0] != "ENT" {
		t.Fatalf("unexpected departments %v", state.Departments)
	}
	if state.Draft.Date != "2026-03-10" {
		t.Fatalf("date should be kept, got %q", state.Draft.Date)
	}
}

func TestForwardGating(t *testing.T) {
	w := newTestWizard(directoryAPI(), nil)
	ctx := context.Background()

	gate := func(step Step) {
		t.Helper()
		if got := w.State().Step; got != step {
			t.Fatalf("expected step %v, got %v", step, got)
		}
		if w.State().CanContinue {
			t.Fatalf("step %v reports it can continue", step)
		}
		err := w.Next()
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			t.Fatalf("step %v: expected StepError, got %v", step, err)
		}
		if got := w.State().Step; got != step {
			t.Fatalf("gated Next moved from %v to %v", step, got)
		}
	}

	gate(StepHospital)
	mustDo(t, "select hospital", w.SelectHospital(ctx, "H"))
	mustDo(t, "next", w.Next())

	gate(StepDepartment)
	mustDo(t, "select department", w.SelectDepartment(ctx, "Cardiology"))
	mustDo(t, "next", w.Next())

	gate(StepDoctor)
	mustDo(t, "select doctor", w.SelectDoctor("Dr"))
	mustDo(t, "next", w.Next())

	gate(StepSchedule)
}

func TestPreviousKeepsSelections(t *testing.T) {
	w := newTestWizard(directoryAPI(), nil)
	advanceToConfirm(t, w)

	for i := 0; i < 4; i++ {
		if !w.Previous() {
			t.Fatalf("Previous %d refused", i)
		}
	}
	if w.Previous() {
		t.Fatalf("Previous moved before the first step")
	}
	state := w.State()
	if state.Step != StepHospital {
		t.Fatalf("unexpected step %v", state.Step)
	}
	want := Draft{HospitalID: "H", Department: "Cardiology", DoctorID: "Dr", Date: "2026-03-12", TimeSlot: "10:00"}
	if state.Draft != want {
		t.Fatalf("selections cleared: %+v", state.Draft)
	}
}

func TestSelectionsRequireTheirStep(t *testing.T) {
	w := newTestWizard(directoryAPI(), nil)
	var stepErr *StepError
	if err := w.SelectDoctor("Dr"); !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if _, err := w.Submit(context.Background(), patient); !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError on early submit, got %v", err)
	}
}

func TestDailyLimitRouting(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantPhase Phase
		wantStep  Step
	}{
		{
			name:      "message substring",
			err:       &api.Error{Status: http.StatusBadRequest, Message: "You can only book 2 OPD appointments per day"},
			wantPhase: PhaseLimitReached,
			wantStep:  StepConfirm,
		},
		{
			name:      "structured code",
			err:       &api.Error{Status: http.StatusTooManyRequests, Code: DailyLimitCode, Message: "limit"},
			wantPhase: PhaseLimitReached,
			wantStep:  StepConfirm,
		},
		{
			name:      "generic failure",
			err:       &api.Error{Status: http.StatusInternalServerError, Message: "slot no longer available"},
			wantPhase: PhaseEditing,
			wantStep:  StepConfirm,
		},
		{
			name:      "transport failure",
			err:       errors.New("dial tcp: connection refused"),
			wantPhase: PhaseEditing,
			wantStep:  StepConfirm,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := directoryAPI()
			client.createBookingFn = func(context.Context, models.BookingRequest) (models.Appointment, error) {
				return models.Appointment{}, tc.err
			}
			w := newTestWizard(client, nil)
			advanceToConfirm(t, w)

			if _, err := w.Submit(context.Background(), patient); err == nil {
				t.Fatalf("expected error")
			}
			state := w.State()
			if state.Phase != tc.wantPhase || state.Step != tc.wantStep {
				t.Fatalf("got phase %s step %v", state.Phase, state.Step)
			}
			if state.LastError == "" || state.Submitting {
				t.Fatalf("unexpected state %+v", state)
			}
		})
	}
}

func TestChangeDateReturnsToSchedule(t *testing.T) {
	client := directoryAPI()
	calls := 0
	client.createBookingFn = func(_ context.Context, in models.BookingRequest) (models.Appointment, error) {
		calls++
		if calls == 1 {
			return models.Appointment{}, &api.Error{Status: http.StatusBadRequest, Message: "Maximum 2 OPD bookings per day"}
		}
		return models.Appointment{ID: "a2", Status: models.StatusBooked}, nil
	}
	w := newTestWizard(client, nil)
	advanceToConfirm(t, w)
	_, _ = w.Submit(context.Background(), patient)

	if err := w.Next(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
	mustDo(t, "change date", w.ChangeDate())
	if state := w.State(); state.Step != StepSchedule || state.Phase != PhaseEditing {
		t.Fatalf("unexpected state %+v", state)
	}
	mustDo(t, "select date", w.SelectDate("2026-03-13"))
	mustDo(t, "next", w.Next())
	if _, err := w.Submit(context.Background(), patient); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := w.ChangeDate(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("ChangeDate outside limit state: %v", err)
	}
}

func TestStaleDepartmentFetchDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := directoryAPI()
	base := client.getHospitalFn
	client.getHospitalFn = func(ctx context.Context, id string) (models.Hospital, error) {
		if id == "H" {
			close(started)
			<-release
		}
		return base(ctx, id)
	}
	w := newTestWizard(client, nil)

	done := make(chan error, 1)
	go func() { done <- w.SelectHospital(context.Background(), "H") }()
	<-started
	mustDo(t, "select H2", w.SelectHospital(context.Background(), "H2"))
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale select: %v", err)
	}

	state := w.State()
	if state.Draft.HospitalID != "H2" {
		t.Fatalf("unexpected hospital %q", state.Draft.HospitalID)
	}
	if len(state.Departments) != 2 || state.Departments[0] != "ENT" {
		t.Fatalf("stale departments applied: %v", state.Departments)
	}
}

func TestStaleDoctorFetchDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := &fakeAPI{
		getHospitalFn: func(context.Context, string) (models.Hospital, error) {
			return models.Hospital{ID: "H", Departments: []string{"Cardiology", "ENT"}}, nil
		},
		listDoctorsFn: func(_ context.Context, _, department string) ([]models.Doctor, error) {
			if department == "Cardiology" {
				close(started)
				<-release
			}
			return []models.Doctor{{ID: models.FlexID("doc-" + department), Department: department}}, nil
		},
	}
	w := newTestWizard(client, nil)
	mustDo(t, "select hospital", w.SelectHospital(context.Background(), "H"))
	mustDo(t, "next", w.Next())

	done := make(chan error, 1)
	go func() { done <- w.SelectDepartment(context.Background(), "Cardiology") }()
	<-started
	mustDo(t, "select ENT", w.SelectDepartment(context.Background(), "ENT"))
	close(release)
	<-done

	doctors := w.State().Doctors
	if len(doctors) != 1 || doctors[0].ID != "doc-ENT" {
		t.Fatalf("stale doctors applied: %+v", doctors)
	}
}

func TestDepartmentFetchFailureKeepsSelection(t *testing.T) {
	w := newTestWizard(directoryAPI(), nil)
	err := w.SelectHospital(context.Background(), "missing")
	if !api.IsNotFound(err) {
		t.Fatalf("expected wrapped not found, got %v", err)
	}
	state := w.State()
	if state.Draft.HospitalID != "missing" || len(state.Departments) != 0 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestDoctorOptionsCrowdOverlay(t *testing.T) {
	crowd := fakeCrowd{"Dr": {Key: "Dr", Level: models.CrowdHigh, WaitTime: "40 min"}}
	w := newTestWizard(directoryAPI(), crowd)
	ctx := context.Background()
	mustDo(t, "select hospital", w.SelectHospital(ctx, "H"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select department", w.SelectDepartment(ctx, "Cardiology"))

	opts := w.DoctorOptions()
	if len(opts) != 1 || opts[0].Crowd == nil || opts[0].Crowd.Level != models.CrowdHigh {
		t.Fatalf("unexpected options %+v", opts)
	}

	crowd["Dr"] = models.CrowdEntry{Key: "Dr", Level: models.CrowdLow}
	if got := w.DoctorOptions()[0].Crowd.Level; got != models.CrowdLow {
		t.Fatalf("overlay not live: %s", got)
	}
}

func TestScheduleOptions(t *testing.T) {
	client := directoryAPI()
	client.listDoctorsFn = func(context.Context, string, string) ([]models.Doctor, error) {
		return []models.Doctor{
			{ID: "Dr", Department: "Cardiology", ConsultationFee: 500, AvailableSlots: []string{"14:00", "14:30"}},
			{ID: "Dr2", Department: "Cardiology", ConsultationFee: 300},
		}, nil
	}
	w := newTestWizard(client, nil)
	ctx := context.Background()
	mustDo(t, "select hospital", w.SelectHospital(ctx, "H"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select department", w.SelectDepartment(ctx, "Cardiology"))
	mustDo(t, "next", w.Next())
	mustDo(t, "select doctor", w.SelectDoctor("Dr"))
	mustDo(t, "next", w.Next())

	if slots := w.SlotOptions(); len(slots) != 2 || slots[0] != "14:00" {
		t.Fatalf("unexpected slots %v", slots)
	}
	if err := w.SelectSlot("10:00"); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
	if err := w.SelectDate("2026-03-09"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("past date accepted: %v", err)
	}
	if err := w.SelectDate("12/03/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("malformed date accepted: %v", err)
	}
	mustDo(t, "select today", w.SelectDate("2026-03-10"))

	w.Previous()
	mustDo(t, "switch doctor", w.SelectDoctor("Dr2"))
	if slots := w.SlotOptions(); len(slots) != 3 {
		t.Fatalf("expected default slots, got %v", slots)
	}
	if fees := w.State().Fees; fees == nil || fees.TotalAmount != 320 {
		t.Fatalf("unexpected fees %+v", fees)
	}
}

func TestResetDiscardsInFlightSubmit(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := directoryAPI()
	client.createBookingFn = func(context.Context, models.BookingRequest) (models.Appointment, error) {
		close(started)
		<-release
		return models.Appointment{ID: "late", Status: models.StatusBooked}, nil
	}
	w := newTestWizard(client, nil)
	advanceToConfirm(t, w)

	done := make(chan struct{})
	go func() {
		_, _ = w.Submit(context.Background(), patient)
		close(done)
	}()
	<-started
	if _, err := w.Submit(context.Background(), patient); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	w.Reset()
	close(release)
	<-done

	state := w.State()
	if state.Phase != PhaseEditing || state.Step != StepHospital || state.Appointment != nil {
		t.Fatalf("late submit leaked into reset wizard: %+v", state)
	}
	if state.Draft != (Draft{Date: "2026-03-10"}) {
		t.Fatalf("unexpected draft %+v", state.Draft)
	}
}

func TestIsDailyLimitExceeded(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain failure"), false},
		{errors.New("you already have 2 OPD bookings today"), true},
		{fmt.Errorf("create booking: %w", &api.Error{Status: 400, Message: "Only 2 OPD visits allowed"}), true},
		{fmt.Errorf("create booking: %w", &api.Error{Status: 429, Code: DailyLimitCode}), true},
		{&api.Error{Status: 400, Code: "SLOT_TAKEN", Message: "slot taken"}, false},
	}
	for i, tc := range cases {
		if got := IsDailyLimitExceeded(tc.err); got != tc.want {
			t.Errorf("case %d (%v): got %v want %v", i, tc.err, got, tc.want)
		}
	}
}
