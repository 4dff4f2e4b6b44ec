package structured

// #region imports
import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medassist/clinical-gateway/internal/access"
)

// #endregion

// #region fixtures

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func seedDoctor(t *testing.T, s *Store, id, first, last, spec, dept string, available bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, role) VALUES (?, ?, ?, 'doctor')`,
		"u-"+id, first, last); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	avail := 0
	if available {
		avail = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO doctors (id, user_id, specialization, department, available_days,
		   available_time_start, available_time_end, consultation_fee, is_available)
		 VALUES (?, ?, ?, ?, 'Mon-Fri', '09:00', '17:00', '500', ?)`,
		id, "u-"+id, spec, dept, avail); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
}

func seedAppointment(t *testing.T, s *Store, id, doctorID, date, tm, status string) {
	t.Helper()
	if _, err := s.db.ExecContext(context.Background(),
		`INSERT INTO appointments (id, doctor_id, appointment_date, appointment_time, status)
		 VALUES (?, ?, ?, ?, ?)`,
		id, doctorID, date, tm, status); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
}

// #endregion

// #region intent-tests

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"which doctors are available today?", IntentDoctorAvailability},
		{"is Dr. Mehta available on Friday?", IntentDoctorAvailability},
		{"doctor schedule for cardiology", IntentDoctorAvailability},
		{"are there any appointment slots open this week?", IntentAppointmentSlots},
		{"can I book an appointment?", IntentAppointmentSlots},
		{"show me the upcoming slots", IntentAppointmentSlots},
		{"what departments does the hospital have?", IntentDepartmentList},
		{"list all specialities", IntentDepartmentList},
		{"what are the symptoms of diabetes?", IntentNone},
		{"headache since yesterday", IntentNone},
	}
	for _, tc := range cases {
		if got := ClassifyIntent(tc.query); got != tc.want {
			t.Errorf("ClassifyIntent(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

// #endregion

// #region resolve-tests

func TestResolveUnmatchedFallsThrough(t *testing.T) {
	s := newTestStore(t)
	out, err := s.Resolve(context.Background(), "what causes high blood pressure?", access.RolePatient, "p1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Handled {
		t.Fatal("clinical question must fall through to retrieval")
	}
}

func TestResolveDoctorAvailability(t *testing.T) {
	s := newTestStore(t)
	seedDoctor(t, s, "d1", "Asha", "Mehta", "Cardiology", "cardiology", true)
	seedDoctor(t, s, "d2", "Ravi", "Kumar", "Neurology", "neurology", false)

	out, err := s.Resolve(context.Background(), "which doctors are available?", access.RolePatient, "p1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !out.Handled || out.Intent != IntentDoctorAvailability {
		t.Fatalf("got handled=%v intent=%s", out.Handled, out.Intent)
	}
	if !strings.Contains(out.Context, "### Available Doctors") {
		t.Fatalf("missing header in context:\n%s", out.Context)
	}
	if !strings.Contains(out.Context, "Dr. Asha Mehta") {
		t.Fatalf("available doctor missing:\n%s", out.Context)
	}
	if strings.Contains(out.Context, "Kumar") {
		t.Fatalf("unavailable doctor leaked:\n%s", out.Context)
	}
}

func TestResolveAppointmentSlotsSkipsPastAndCancelled(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }
	seedDoctor(t, s, "d1", "Asha", "Mehta", "Cardiology", "cardiology", true)
	seedAppointment(t, s, "a1", "d1", "2026-03-11", "10:00", "pending")
	seedAppointment(t, s, "a2", "d1", "2026-03-01", "10:00", "pending")
	seedAppointment(t, s, "a3", "d1", "2026-03-12", "11:00", "cancelled")

	out, err := s.Resolve(context.Background(), "any appointment slots available?", access.RolePatient, "p1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out.Context, "2026-03-11 at 10:00") {
		t.Fatalf("upcoming slot missing:\n%s", out.Context)
	}
	if strings.Contains(out.Context, "2026-03-01") {
		t.Fatalf("past slot leaked:\n%s", out.Context)
	}
	if strings.Contains(out.Context, "2026-03-12") {
		t.Fatalf("cancelled slot leaked:\n%s", out.Context)
	}
}

func TestResolveEmptyRowsSaysNoResults(t *testing.T) {
	s := newTestStore(t)
	out, err := s.Resolve(context.Background(), "what departments do you have?", access.RoleReceptionist, "r1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !out.Handled {
		t.Fatal("department query should be handled even with an empty store")
	}
	if out.Context != "No results found in hospital records for this query." {
		t.Fatalf("got context %q", out.Context)
	}
}

func TestResolveDepartmentList(t *testing.T) {
	s := newTestStore(t)
	seedDoctor(t, s, "d1", "Asha", "Mehta", "Cardiology", "cardiology", true)
	seedDoctor(t, s, "d2", "Ravi", "Kumar", "Cardiology", "cardiology", true)
	seedDoctor(t, s, "d3", "Nina", "Rao", "Neurology", "neurology", true)

	out, err := s.Resolve(context.Background(), "list the hospital departments", access.RolePatient, "p1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out.Context, "### Hospital Departments") {
		t.Fatalf("missing header:\n%s", out.Context)
	}
	if !strings.Contains(out.Context, "**cardiology** — Cardiology (2 doctor(s))") {
		t.Fatalf("cardiology count wrong:\n%s", out.Context)
	}
}

// #endregion
