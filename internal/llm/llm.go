// Package llm wraps the generative model behind a single Complete call
// with role-aware clinical prompt templates.
package llm

// #region imports
import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/medassist/clinical-gateway/internal/access"
)

// #endregion

// #region interface

// Inferencer is the opaque completion capability the pipeline consumes.
type Inferencer interface {
	Complete(ctx context.Context, query, contextText string, maxTokens int, temperature float64) (string, error)
}

// #endregion

// #region prompts

const systemInstruction = `You are a highly accurate and safe Medical AI Assistant integrated into a Hospital ERP system.
Your primary goal is to provide evidence-based information based ONLY on the provided context.`

const doctorInstructions = `INSTRUCTIONS:
1. Use professional medical terminology.
2. Provide technical clinical details from the context.
3. If the answer is not in the context, state: "Information not found in clinical guidelines."
4. Always cite sources as [Source Name, Page/Section].
5. Mention any contraindications found in the context.
6. MANDATORY: End with "For clinical validation only. Final decision rests with the attending physician."`

const patientInstructions = `INSTRUCTIONS:
1. Use clear, non-technical language (layman terms).
2. Avoid making definitive diagnoses. Use phrases like "The records suggest..." or "Based on guidelines...".
3. If the query involves symptoms, check for emergency keywords in the context.
4. Always include a disclaimer: "This is for informational purposes only and is not a substitute for professional medical advice."
5. If the information is missing, refer them to their doctor.
6. Always cite sources simply, e.g., (Source: Hospital FAQ).`

// BuildPrompt assembles the role-aware prompt. Clinicians get the
// technical template; everyone else gets the patient-safe template.
func BuildPrompt(query, contextText string, role access.Role) string {
	roleLabel := "Patient Information Assistant"
	instructions := patientInstructions
	if role == access.RoleDoctor || role == access.RoleAdmin || role == access.RoleNurse {
		roleLabel = "Clinical Assistant for Doctors"
		instructions = doctorInstructions
	}
	if strings.TrimSpace(contextText) == "" {
		contextText = "(no hospital knowledge retrieved for this query)"
	}

	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\nROLE: ")
	b.WriteString(roleLabel)
	b.WriteString("\nCONTEXT:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nUSER QUERY: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	return b.String()
}

// #endregion

// #region ollama-client

// OllamaClient runs completions against a local Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
	role   access.Role
}

// NewOllamaClient builds a completion client for the given model.
func NewOllamaClient(model string) *OllamaClient {
	return &OllamaClient{
		client: api.NewClient(envconfig.Host(), http.DefaultClient),
		model:  model,
		role:   access.RolePatient,
	}
}

// ForRole returns a shallow copy bound to a different prompt role.
func (c *OllamaClient) ForRole(role access.Role) *OllamaClient {
	cp := *c
	cp.role = role
	return &cp
}

// Complete streams a generation and returns the accumulated text. The
// caller bounds the call with its context deadline; cancellation stops
// the stream mid-generation.
func (c *OllamaClient) Complete(ctx context.Context, query, contextText string, maxTokens int, temperature float64) (string, error) {
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: BuildPrompt(query, contextText, c.role),
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}

	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

// #endregion
