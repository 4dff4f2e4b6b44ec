// Package audit keeps a tamper-evident record of every interaction.
// Each record's hash covers its own content plus the previous record's
// hash, so any after-the-fact edit breaks the chain.
package audit

// #region imports
import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medassist/clinical-gateway/internal/access"
	"github.com/medassist/clinical-gateway/internal/notify"
)

// #endregion

// #region schema

// GenesisHash seeds the chain when the ledger is empty.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	ts             TEXT NOT NULL,
	requester      TEXT NOT NULL,
	role           TEXT NOT NULL,
	query          TEXT NOT NULL,
	retrieved_docs TEXT NOT NULL DEFAULT '[]',
	output         TEXT NOT NULL,
	confidence     REAL NOT NULL DEFAULT 0,
	risk_level     TEXT NOT NULL DEFAULT 'low',
	prev_hash      TEXT NOT NULL,
	curr_hash      TEXT NOT NULL
);
`

// #endregion

// #region record

// Record is one immutable ledger entry.
type Record struct {
	Seq        int64
	ID         string
	Timestamp  time.Time
	Requester  string
	Role       access.Role
	Query      string
	DocIDs     []string
	Output     string
	Confidence float64
	RiskLevel  string
	PrevHash   string
	CurrHash   string
}

// Interaction is the input to Append.
type Interaction struct {
	Requester  string
	Role       access.Role
	Query      string
	DocIDs     []string
	Output     string
	Confidence float64
	RiskLevel  string
}

// #endregion

// #region ledger

// Ledger is the append-only hash chain backed by sqlite. Appends are
// serialized with a single-writer lock so two writers can never compute
// against the same previous hash.
type Ledger struct {
	mu       sync.Mutex
	db       *sql.DB
	notifier notify.Notifier
	now      func() time.Time
}

// NewLedger wraps an open database handle. A nil notifier disables
// security alerts.
func NewLedger(db *sql.DB, notifier notify.Notifier) *Ledger {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Ledger{db: db, notifier: notifier, now: time.Now}
}

// EnsureSchema creates the ledger table if it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	return nil
}

// chainHash binds a record's content to its predecessor.
func chainHash(ts time.Time, requester, query, output, prev string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s", ts.UTC().Format(time.RFC3339Nano), requester, query, output, prev)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Append writes one record to the chain. The read-last-then-insert runs
// inside a transaction under the writer lock, so the chain order equals
// insertion order. High and critical risk levels also fire a security
// alert; alert failure never rolls back the append.
func (l *Ledger) Append(ctx context.Context, in Interaction) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		ID:         uuid.New().String(),
		Timestamp:  l.now().UTC(),
		Requester:  in.Requester,
		Role:       in.Role,
		Query:      in.Query,
		DocIDs:     in.DocIDs,
		Output:     in.Output,
		Confidence: in.Confidence,
		RiskLevel:  in.RiskLevel,
	}
	if rec.RiskLevel == "" {
		rec.RiskLevel = "low"
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("audit begin: %w", err)
	}
	defer tx.Rollback()

	prev := GenesisHash
	err = tx.QueryRowContext(ctx, `SELECT curr_hash FROM audit_log ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return Record{}, fmt.Errorf("audit read last: %w", err)
	}
	rec.PrevHash = prev
	rec.CurrHash = chainHash(rec.Timestamp, rec.Requester, rec.Query, rec.Output, prev)

	docs, err := json.Marshal(rec.DocIDs)
	if err != nil {
		return Record{}, fmt.Errorf("audit encode docs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, requester, role, query, retrieved_docs, output, confidence, risk_level, prev_hash, curr_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.Format(time.RFC3339Nano), rec.Requester, string(rec.Role),
		rec.Query, string(docs), rec.Output, rec.Confidence, rec.RiskLevel,
		rec.PrevHash, rec.CurrHash)
	if err != nil {
		return Record{}, fmt.Errorf("audit insert: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return Record{}, fmt.Errorf("audit seq: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("audit commit: %w", err)
	}

	if rec.RiskLevel == "high" || rec.RiskLevel == "critical" {
		severity := "high"
		if rec.RiskLevel == "critical" {
			severity = "critical"
		}
		l.notifier.Security(ctx, notify.SecurityAlert{
			Alert:     "CRITICAL_AI_RISK",
			Severity:  severity,
			UserID:    rec.Requester,
			Query:     notify.TruncateQuery(rec.Query),
			RecordID:  rec.ID,
			Timestamp: rec.Timestamp,
		})
	}
	return rec, nil
}

// VerifyChain walks the ledger in insertion order and confirms, for
// every record, that its prev_hash matches its predecessor's curr_hash
// and that its curr_hash still derives from its stored content. The
// second check catches edits to a record's columns that leave the hash
// columns untouched. A break is reported as tampering, never repaired.
func (l *Ledger) VerifyChain(ctx context.Context) (bool, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, ts, requester, query, output, prev_hash, curr_hash FROM audit_log ORDER BY seq ASC`)
	if err != nil {
		return false, fmt.Errorf("audit walk: %w", err)
	}
	defer rows.Close()

	prev := GenesisHash
	for rows.Next() {
		var id, ts, requester, query, output, prevHash, currHash string
		if err := rows.Scan(&id, &ts, &requester, &query, &output, &prevHash, &currHash); err != nil {
			return false, fmt.Errorf("audit scan: %w", err)
		}
		tamper := ""
		if prevHash != prev {
			tamper = "link mismatch"
		} else if t, err := time.Parse(time.RFC3339Nano, ts); err != nil {
			tamper = "unparseable timestamp"
		} else if chainHash(t, requester, query, output, prevHash) != currHash {
			tamper = "content hash mismatch"
		}
		if tamper != "" {
			log.Printf("[AUDIT] TAMPER DETECTED at record %s: %s", id, tamper)
			l.notifier.Security(ctx, notify.SecurityAlert{
				Alert:     "AUDIT_CHAIN_TAMPER",
				Severity:  "critical",
				UserID:    requester,
				RecordID:  id,
				Timestamp: time.Now().UTC(),
			})
			return false, nil
		}
		prev = currHash
	}
	return true, rows.Err()
}

// Tail returns the n most recent records in chronological order.
func (l *Ledger) Tail(ctx context.Context, n int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, id, ts, requester, role, query, retrieved_docs, output, confidence, risk_level, prev_hash, curr_hash
		FROM audit_log ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit tail: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts, role, docs string
		if err := rows.Scan(&r.Seq, &r.ID, &ts, &r.Requester, &role, &r.Query, &docs,
			&r.Output, &r.Confidence, &r.RiskLevel, &r.PrevHash, &r.CurrHash); err != nil {
			return nil, fmt.Errorf("audit tail scan: %w", err)
		}
		r.Role = access.Role(role)
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.Timestamp = t
		}
		if err := json.Unmarshal([]byte(docs), &r.DocIDs); err != nil {
			log.Printf("[AUDIT] record %s has malformed doc list: %v", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// #endregion
