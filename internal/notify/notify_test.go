package notify

// #region imports
import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medassist/clinical-gateway/internal/access"
)

// #endregion

// #region webhook-tests

func TestEmergencyPostsToBothSinks(t *testing.T) {
	var hits atomic.Int32
	var got EmergencyAlert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := &Webhook{
		doctorURL: srv.URL,
		adminURL:  srv.URL,
		client:    &http.Client{Timeout: time.Second},
	}
	alert := NewEmergencyAlert("p1", access.RolePatient, []string{"chest pain"}, "I have chest pain")
	w.Emergency(context.Background(), alert)

	if hits.Load() != 2 {
		t.Fatalf("got %d deliveries, want 2 (doctor + admin)", hits.Load())
	}
	if got.Type != "EMERGENCY_AI_TRIAGE" || got.Priority != "P0" {
		t.Fatalf("payload type=%s priority=%s", got.Type, got.Priority)
	}
	if len(got.Details.Symptoms) != 1 || got.Details.Symptoms[0] != "chest pain" {
		t.Fatalf("symptoms = %v", got.Details.Symptoms)
	}
}

func TestEmptyURLSkipsDelivery(t *testing.T) {
	w := &Webhook{client: &http.Client{Timeout: time.Second}}
	// Must simply return, not panic or try to dial.
	w.Emergency(context.Background(), NewEmergencyAlert("p1", access.RolePatient, nil, "q"))
	w.Security(context.Background(), SecurityAlert{Alert: "CRITICAL_AI_RISK"})
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	w := &Webhook{
		siemURL: "http://127.0.0.1:1/nope",
		client:  &http.Client{Timeout: 100 * time.Millisecond},
	}
	// Best-effort contract: a dead sink never surfaces an error.
	w.Security(context.Background(), SecurityAlert{Alert: "CRITICAL_AI_RISK", UserID: "u1"})
}

func TestTruncateQuery(t *testing.T) {
	long := strings.Repeat("a", 250)
	if got := TruncateQuery(long); len(got) != 100 {
		t.Fatalf("truncated length %d, want 100", len(got))
	}
	if got := TruncateQuery("short"); got != "short" {
		t.Fatalf("short query changed to %q", got)
	}
}

// #endregion
