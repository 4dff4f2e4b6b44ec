package pipeline

// #region imports
import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/medassist/clinical-gateway/internal/access"
	"github.com/medassist/clinical-gateway/internal/audit"
	"github.com/medassist/clinical-gateway/internal/notify"
	"github.com/medassist/clinical-gateway/internal/retrieval"
	"github.com/medassist/clinical-gateway/internal/structured"
)

// #endregion

// #region query

// Query is the immutable per-request input.
type Query struct {
	Text        string
	Role        access.Role
	RequesterID string
	Department  string
}

// #endregion

// #region result

// Classification records how a query was answered.
type Classification string

const (
	ClassEmergency  Classification = "emergency"
	ClassStructured Classification = "structured_record"
	ClassKnowledge  Classification = "knowledge_retrieval"
	ClassGeneral    Classification = "general_inference"
	ClassBlocked    Classification = "blocked"
	ClassFallback   Classification = "fallback"
)

// Status is the terminal pipeline state.
type Status string

const (
	StatusCompleted         Status = "completed"
	StatusBlocked           Status = "blocked"
	StatusEmergencyOverride Status = "emergency_override"
	StatusTimeout           Status = "timeout"
	StatusError             Status = "error"
)

// Result is produced exactly once per request and never mutated after
// return. Query holds the redacted form.
type Result struct {
	Query          string         `json:"query"`
	Response       string         `json:"response"`
	Classification Classification `json:"classification"`
	Status         Status         `json:"status"`
	Citations      []string       `json:"citations"`
	RetrievedCount int            `json:"retrieved_count"`
	StructuredUsed bool           `json:"structured_used"`
	ElapsedMs      int64          `json:"elapsed_ms"`
}

// #endregion

// #region stage-outcomes

// outcomeKind tags a stage result so degraded paths are explicit
// branches rather than caught incidentally.
type outcomeKind int

const (
	outcomeHit outcomeKind = iota
	outcomeEmpty
	outcomeTimedOut
	outcomeFailed
)

type structuredOutcome struct {
	kind    outcomeKind
	context string
}

type retrievalOutcome struct {
	kind      outcomeKind
	context   string
	citations []string
	count     int
	docIDs    []string
}

// #endregion

// #region collaborators

// Resolver is the structured-record capability.
type Resolver interface {
	Resolve(ctx context.Context, query string, role access.Role, requesterID string) (structured.Outcome, error)
}

// Retriever is the hybrid search capability.
type Retriever interface {
	Search(ctx context.Context, query string, role access.Role, department string, extra map[string]string) ([]retrieval.Hit, error)
}

// Inferencer is the opaque completion capability.
type Inferencer interface {
	Complete(ctx context.Context, query, contextText string, maxTokens int, temperature float64) (string, error)
}

// Ledger is the audit append capability.
type Ledger interface {
	Append(ctx context.Context, in audit.Interaction) (audit.Record, error)
}

// #endregion

// #region config

// Config bounds each suspension point and the inference budget.
type Config struct {
	StructuredTimeout  time.Duration
	RetrievalTimeout   time.Duration
	InferenceTimeout   time.Duration
	MaxContextChars    int
	MaxTokens          int
	Temperature        float64
	RelevanceThreshold float64
}

// DefaultConfig returns production defaults with env overrides.
func DefaultConfig() Config {
	cfg := Config{
		StructuredTimeout:  5 * time.Second,
		RetrievalTimeout:   5 * time.Second,
		InferenceTimeout:   30 * time.Second,
		MaxContextChars:    3000,
		MaxTokens:          1024,
		Temperature:        0.3,
		RelevanceThreshold: 0.25,
	}
	if v, ok := envFloat("LLM_TIMEOUT"); ok {
		cfg.InferenceTimeout = time.Duration(v * float64(time.Second))
	}
	if v, ok := envFloat("RETRIEVAL_TIMEOUT"); ok {
		cfg.StructuredTimeout = time.Duration(v * float64(time.Second))
		cfg.RetrievalTimeout = cfg.StructuredTimeout
	}
	if v, ok := envInt("MAX_CONTEXT_CHARS"); ok {
		cfg.MaxContextChars = v
	}
	if v, ok := envInt("LLM_MAX_TOKENS"); ok {
		cfg.MaxTokens = v
	}
	if v, ok := envFloat("LLM_TEMPERATURE"); ok {
		cfg.Temperature = v
	}
	if v, ok := envFloat("RELEVANCE_THRESHOLD"); ok {
		cfg.RelevanceThreshold = v
	}
	return cfg
}

func envInt(key string) (int, bool) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func envFloat(key string) (float64, bool) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// #endregion

// #region pipeline

// Pipeline sequences safety filters, triage, routing, inference and
// audit for one query at a time. Distinct queries may run concurrently;
// the index and ledger enforce their own synchronization.
type Pipeline struct {
	resolver   Resolver
	retriever  Retriever
	inferencer Inferencer
	ledger     Ledger
	notifier   notify.Notifier
	cfg        Config
}

// New wires the pipeline's collaborators. resolver and retriever may be
// nil, which disables those routes (the query degrades to general
// inference). A nil notifier falls back to a no-op sink.
func New(resolver Resolver, retriever Retriever, inferencer Inferencer, ledger Ledger, notifier notify.Notifier, cfg Config) *Pipeline {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Pipeline{
		resolver:   resolver,
		retriever:  retriever,
		inferencer: inferencer,
		ledger:     ledger,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// #endregion
