// Package notify delivers out-of-band alerts to hospital staff and the
// security team. Delivery is best-effort: failures are logged, never
// propagated to the caller.
package notify

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/medassist/clinical-gateway/internal/access"
)

// #endregion

// #region payloads

// EmergencyAlert is the P0 payload pushed to the doctor dashboard and
// the safety monitor when triage detects a critical query.
type EmergencyAlert struct {
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	Details   Details   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

type Details struct {
	UserID   string      `json:"user_id"`
	Role     access.Role `json:"role"`
	Symptoms []string    `json:"detected_symptoms"`
	RawQuery string      `json:"raw_query"`
}

// SecurityAlert is pushed to the SIEM sink for high-risk or tampered
// audit entries. The query is truncated so the alert itself cannot leak
// a full transcript.
type SecurityAlert struct {
	Alert     string    `json:"alert"`
	Severity  string    `json:"severity"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	RecordID  string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
}

// #endregion

// #region notifier

// Notifier is the alert sink consumed by the pipeline and the ledger.
type Notifier interface {
	Emergency(ctx context.Context, alert EmergencyAlert)
	Security(ctx context.Context, alert SecurityAlert)
}

// Noop discards all alerts. Used in tests and single-node dev setups.
type Noop struct{}

func (Noop) Emergency(context.Context, EmergencyAlert) {}
func (Noop) Security(context.Context, SecurityAlert)   {}

// #endregion

// #region webhook

// Webhook posts JSON alerts to configured HTTP endpoints. An empty URL
// disables that sink. The short client timeout keeps a dead sink from
// stalling the pipeline.
type Webhook struct {
	doctorURL string
	adminURL  string
	siemURL   string
	client    *http.Client
}

// NewWebhook reads sink URLs from the environment.
func NewWebhook() *Webhook {
	return &Webhook{
		doctorURL: os.Getenv("DOCTOR_ALERT_WEBHOOK"),
		adminURL:  os.Getenv("ADMIN_ALERT_WEBHOOK"),
		siemURL:   os.Getenv("SIEM_WEBHOOK_URL"),
		client:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Emergency notifies the doctor dashboard and the admin safety monitor.
func (w *Webhook) Emergency(ctx context.Context, alert EmergencyAlert) {
	log.Printf("[NOTIFY] EMERGENCY triggered by user %s symptoms=%v", alert.Details.UserID, alert.Details.Symptoms)
	w.post(ctx, w.doctorURL, "doctor", alert)
	w.post(ctx, w.adminURL, "admin", alert)
}

// Security notifies the SIEM sink.
func (w *Webhook) Security(ctx context.Context, alert SecurityAlert) {
	log.Printf("[NOTIFY] security alert %s for user %s", alert.Alert, alert.UserID)
	w.post(ctx, w.siemURL, "siem", alert)
}

func (w *Webhook) post(ctx context.Context, url, sink string, payload any) {
	if url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[NOTIFY] %s payload encode failed: %v", sink, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[NOTIFY] %s request build failed: %v", sink, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		log.Printf("[NOTIFY] %s delivery failed: %v", sink, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[NOTIFY] %s sink returned %s", sink, resp.Status)
	}
}

// TruncateQuery caps query text for inclusion in alert payloads.
func TruncateQuery(q string) string {
	const max = 100
	if len(q) <= max {
		return q
	}
	return q[:max]
}

// NewEmergencyAlert builds the standard P0 triage payload.
func NewEmergencyAlert(userID string, role access.Role, symptoms []string, query string) EmergencyAlert {
	return EmergencyAlert{
		Type:     "EMERGENCY_AI_TRIAGE",
		Priority: "P0",
		Details: Details{
			UserID:   userID,
			Role:     role,
			Symptoms: symptoms,
			RawQuery: query,
		},
		Timestamp: time.Now().UTC(),
	}
}

// #endregion
