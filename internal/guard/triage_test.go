package guard

import (
	"strings"
	"testing"
)

func TestTriageCritical(t *testing.T) {
	sev, symptoms := Triage("I have chest pain and can't breathe")
	if sev != SeverityCritical {
		t.Fatalf("expected critical, got %s", sev)
	}
	if len(symptoms) == 0 || symptoms[0] != "chest pain" {
		t.Fatalf("expected chest pain in symptoms, got %v", symptoms)
	}
}

func TestTriageCriticalWinsOverHigh(t *testing.T) {
	// A critical keyword is terminal even with high-risk terms present.
	sev, _ := Triage("high fever, persistent vomiting and a seizure")
	if sev != SeverityCritical {
		t.Fatalf("expected critical, got %s", sev)
	}
}

func TestTriageHighRisk(t *testing.T) {
	sev, symptoms := Triage("my son has a high fever since morning")
	if sev != SeverityHigh {
		t.Fatalf("expected high, got %s", sev)
	}
	if len(symptoms) != 1 || symptoms[0] != "high fever" {
		t.Fatalf("unexpected symptoms %v", symptoms)
	}
}

func TestTriageAmplifier(t *testing.T) {
	sev, symptoms := Triage("this is the worst pain I have ever felt")
	if sev != SeverityHigh {
		t.Fatalf("expected high via amplifier, got %s", sev)
	}
	if len(symptoms) == 0 {
		t.Fatal("expected a reported symptom marker")
	}
}

func TestTriageLow(t *testing.T) {
	sev, symptoms := Triage("what are the visiting hours for cardiology")
	if sev != SeverityLow {
		t.Fatalf("expected low, got %s", sev)
	}
	if symptoms != nil {
		t.Fatalf("expected no symptoms, got %v", symptoms)
	}
}

func TestTriageWordBoundary(t *testing.T) {
	// "overdosed" must not match the "overdose" keyword table via substring.
	sev, _ := Triage("reading about overdoses statistics")
	if sev == SeverityCritical {
		t.Fatal("plural/derived form should not hit the boundary-anchored rule")
	}
}

func TestEmergencyAdvice(t *testing.T) {
	msg := EmergencyAdvice([]string{"chest pain"})
	if !strings.Contains(msg, "EMERGENCY SERVICES") || !strings.Contains(msg, "chest pain") {
		t.Fatalf("advice missing required content: %q", msg)
	}
}
