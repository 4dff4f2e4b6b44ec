// Package structured answers hospital-records questions straight from the
// relational store. When a query matches a records intent the retrieval
// pipeline is bypassed and the rows are formatted into prompt context
// using parameterized templates only.
package structured

// #region imports
import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/medassist/clinical-gateway/internal/access"
)

// #endregion

// #region intents

// Intent identifies which records template a query maps to.
type Intent string

const (
	IntentDoctorAvailability Intent = "doctor_availability"
	IntentAppointmentSlots   Intent = "appointment_slots"
	IntentDepartmentList     Intent = "department_list"
	IntentNone               Intent = "none"
)

type intentRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// Ordered: first matching group wins.
var intentRules = []intentRule{
	{
		IntentDoctorAvailability,
		[]*regexp.Regexp{
			regexp.MustCompile(`(?is)(?:which|what|who|any|list|show|find|available)\b.*\b(?:doctor|physician|specialist)s?\b.*\b(?:available|free|on duty)`),
			regexp.MustCompile(`(?is)\b(?:doctor|dr\.?)\b.*\b(?:available|availability|schedule|when|timing)`),
			regexp.MustCompile(`(?is)\b(?:available|free)\b.*\b(?:doctor|physician|specialist)`),
			regexp.MustCompile(`(?is)\bis\s+dr\.?\s+\w+\s+available`),
		},
	},
	{
		IntentAppointmentSlots,
		[]*regexp.Regexp{
			regexp.MustCompile(`(?is)\b(?:appointment|slot|book|booking|schedule)\b.*\b(?:available|open|free)`),
			regexp.MustCompile(`(?is)\b(?:can i|how to|want to)\b.*\b(?:book|schedule|make)\b.*\bappointment`),
			regexp.MustCompile(`(?is)\b(?:next|upcoming|open)\b.*\bslots?\b`),
		},
	},
	{
		IntentDepartmentList,
		[]*regexp.Regexp{
			regexp.MustCompile(`(?is)\b(?:department|departments|specialit(?:y|ies)|specialization|ward|unit)\b.*\b(?:list|available|offer|have|show|what)`),
			regexp.MustCompile(`(?is)\b(?:what|which|list|show)\b.*\b(?:department|specialit)`),
		},
	},
}

// ClassifyIntent returns the first intent whose pattern group matches,
// or IntentNone when the query is not a records question.
func ClassifyIntent(query string) Intent {
	for _, rule := range intentRules {
		for _, pat := range rule.patterns {
			if pat.MatchString(query) {
				log.Printf("[RECORDS] matched intent=%s", rule.intent)
				return rule.intent
			}
		}
	}
	return IntentNone
}

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	role       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS doctors (
	id                   TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL REFERENCES users(id),
	specialization       TEXT NOT NULL,
	department           TEXT,
	available_days       TEXT,
	available_time_start TEXT,
	available_time_end   TEXT,
	consultation_fee     TEXT,
	is_available         INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS appointments (
	id               TEXT PRIMARY KEY,
	doctor_id        TEXT NOT NULL REFERENCES doctors(id),
	patient_id       TEXT,
	appointment_date TEXT NOT NULL,
	appointment_time TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(appointment_date);
`

// #endregion

// #region queries

// Every template is parameterized; query text never reaches SQL.
var templates = map[Intent]string{
	IntentDoctorAvailability: `
		SELECT u.first_name, u.last_name, d.specialization, d.department,
		       d.available_days, d.available_time_start, d.available_time_end,
		       d.consultation_fee
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE d.is_available = 1
		ORDER BY d.department, u.last_name
		LIMIT 50`,
	IntentAppointmentSlots: `
		SELECT a.appointment_date, a.appointment_time, a.status,
		       u.first_name || ' ' || u.last_name AS doctor_name,
		       d.specialization, d.department
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN users u ON u.id = d.user_id
		WHERE a.appointment_date >= ?
		  AND a.status IN ('pending', 'confirmed')
		ORDER BY a.appointment_date, a.appointment_time
		LIMIT 30`,
	IntentDepartmentList: `
		SELECT d.department, d.specialization, COUNT(*) AS doctor_count
		FROM doctors d
		WHERE d.department IS NOT NULL
		GROUP BY d.department, d.specialization
		ORDER BY d.department`,
}

// #endregion

// #region store

// Outcome reports whether a query was handled by the records store and,
// if so, the context block built from its rows.
type Outcome struct {
	Handled bool
	Intent  Intent
	Context string
}

// Store resolves records intents against the hospital database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open database handle. The handle stays owned by the
// caller.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the records tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("records schema: %w", err)
	}
	return nil
}

// Resolve tries to answer the query from the records store. A query with
// no matching intent returns Handled=false so the caller falls through to
// retrieval. A matched intent with a DB failure still returns
// Handled=true with the no-results message; the error is surfaced for
// the caller's degrade policy.
func (s *Store) Resolve(ctx context.Context, query string, role access.Role, requesterID string) (Outcome, error) {
	intent := ClassifyIntent(query)
	if intent == IntentNone {
		return Outcome{Handled: false, Intent: IntentNone}, nil
	}

	rows, err := s.execute(ctx, intent)
	if err != nil {
		log.Printf("[RECORDS] query failed: intent=%s err=%v", intent, err)
		return Outcome{Handled: true, Intent: intent, Context: noResults}, err
	}

	log.Printf("[RECORDS] intent=%s rows=%d role=%s", intent, len(rows), role)
	return Outcome{Handled: true, Intent: intent, Context: buildContext(intent, rows)}, nil
}

func (s *Store) execute(ctx context.Context, intent Intent) ([]map[string]string, error) {
	tmpl, ok := templates[intent]
	if !ok {
		return nil, nil
	}

	var args []any
	if intent == IntentAppointmentSlots {
		args = append(args, s.now().Format("2006-01-02"))
	}

	rows, err := s.db.QueryContext(ctx, tmpl, args...)
	if err != nil {
		return nil, fmt.Errorf("records query %s: %w", intent, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("records columns: %w", err)
	}

	var out []map[string]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("records scan: %w", err)
		}
		row := make(map[string]string, len(cols))
		for i, c := range cols {
			row[c] = vals[i].String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// #endregion

// #region context

const noResults = "No results found in hospital records for this query."

func buildContext(intent Intent, rows []map[string]string) string {
	if len(rows) == 0 {
		return noResults
	}

	var b strings.Builder
	switch intent {
	case IntentDoctorAvailability:
		b.WriteString("### Available Doctors\n")
		for _, r := range rows {
			days := r["available_days"]
			if days == "" {
				days = "Not specified"
			}
			dept := r["department"]
			if dept == "" {
				dept = "General"
			}
			fee := r["consultation_fee"]
			if fee == "" {
				fee = "N/A"
			}
			fmt.Fprintf(&b, "\n- **Dr. %s %s** — %s (%s)\n  Schedule: %s | %s – %s | Fee: %s",
				r["first_name"], r["last_name"], r["specialization"], dept,
				days, orDefault(r["available_time_start"], "?"), orDefault(r["available_time_end"], "?"), fee)
		}
	case IntentAppointmentSlots:
		b.WriteString("### Upcoming Appointment Slots\n")
		for _, r := range rows {
			fmt.Fprintf(&b, "\n- %s at %s — Dr. %s (%s, %s) [%s]",
				r["appointment_date"], r["appointment_time"], r["doctor_name"],
				r["specialization"], r["department"], r["status"])
		}
	case IntentDepartmentList:
		b.WriteString("### Hospital Departments\n")
		for _, r := range rows {
			fmt.Fprintf(&b, "\n- **%s** — %s (%s doctor(s))",
				r["department"], r["specialization"], r["doctor_count"])
		}
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// #endregion
