// Package pipeline sequences every stage of clinical query handling:
// safety filters, emergency triage, structured or retrieval routing,
// timeout-bounded inference, output redaction and the audit append.
// Every terminal path writes exactly one audit record.
package pipeline

// #region imports
import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/medassist/clinical-gateway/internal/audit"
	"github.com/medassist/clinical-gateway/internal/guard"
	"github.com/medassist/clinical-gateway/internal/notify"
)

// #endregion

// #region copy

const (
	blockedMessage = "Your query was blocked by safety filters. Please rephrase."
	timeoutMessage = "The AI model is taking too long to respond. " +
		"Please try again or consult your physician directly."
	errorMessage = "An internal error occurred. Please try again later."
)

// #endregion

// #region run

// Run executes the full pipeline for one query. It never returns an
// error to the caller: every failure mode maps to a terminal Result
// with a non-diagnostic user-facing message.
func (p *Pipeline) Run(ctx context.Context, q Query) Result {
	t0 := time.Now()

	// Injection check runs first and is blocking; nothing downstream
	// ever sees a query that failed it.
	if err := guard.CheckInjection(q.Text); err != nil {
		log.Printf("[PIPELINE] blocked query from %s: %v", q.RequesterID, err)
		res := Result{
			Query:          guard.Redact(q.Text),
			Response:       blockedMessage,
			Classification: ClassBlocked,
			Status:         StatusBlocked,
		}
		return p.finalize(ctx, q, res, "high", nil, t0)
	}

	// All downstream stages and the audit record see the redacted form.
	query := guard.Redact(q.Text)

	severity, symptoms := guard.Triage(query)
	if severity == guard.SeverityCritical {
		p.notifier.Emergency(ctx, notify.NewEmergencyAlert(q.RequesterID, q.Role, symptoms, query))
		res := Result{
			Query:          query,
			Response:       guard.EmergencyAdvice(symptoms),
			Classification: ClassEmergency,
			Status:         StatusEmergencyOverride,
		}
		return p.finalize(ctx, q, res, "critical", nil, t0)
	}

	res := Result{Query: query, Status: StatusCompleted}
	riskLevel := "low"
	if severity == guard.SeverityHigh {
		riskLevel = "high"
	}

	contextText := ""
	var docIDs []string

	sout := p.tryStructured(ctx, query, q)
	if sout.kind == outcomeHit {
		res.Classification = ClassStructured
		res.StructuredUsed = true
		contextText = truncateContext(sout.context, p.cfg.MaxContextChars)
	} else {
		rout := p.tryRetrieval(ctx, query, q)
		if rout.kind == outcomeHit {
			res.Classification = ClassKnowledge
			res.RetrievedCount = rout.count
			res.Citations = rout.citations
			contextText = rout.context
			docIDs = rout.docIDs
		} else {
			res.Classification = ClassGeneral
		}
	}

	answer, err := p.infer(ctx, query, contextText)
	switch {
	case err == nil:
		res.Response = guard.Redact(answer)
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[PIPELINE] inference timed out after %s", p.cfg.InferenceTimeout)
		res.Response = timeoutMessage
		res.Status = StatusTimeout
		fallbackResult(&res)
		docIDs = nil
	default:
		log.Printf("[PIPELINE] inference failed: %v", err)
		res.Response = errorMessage
		res.Status = StatusError
		fallbackResult(&res)
		docIDs = nil
	}

	return p.finalize(ctx, q, res, riskLevel, docIDs, t0)
}

// fallbackResult strips the routing artifacts of the abandoned route so
// a failed inference never reports citations or retrieval counts for an
// answer that was not produced.
func fallbackResult(res *Result) {
	res.Classification = ClassFallback
	res.Citations = nil
	res.RetrievedCount = 0
	res.StructuredUsed = false
}

// #endregion

// #region stages

// tryStructured attempts the records route under its own timeout.
// Timeouts and failures degrade to the retrieval route.
func (p *Pipeline) tryStructured(ctx context.Context, query string, q Query) structuredOutcome {
	if p.resolver == nil {
		return structuredOutcome{kind: outcomeEmpty}
	}
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StructuredTimeout)
	defer cancel()

	out, err := p.resolver.Resolve(sctx, query, q.Role, q.RequesterID)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[PIPELINE] records lookup timed out")
		return structuredOutcome{kind: outcomeTimedOut}
	case err != nil:
		log.Printf("[PIPELINE] records lookup failed: %v", err)
		return structuredOutcome{kind: outcomeFailed}
	case !out.Handled:
		return structuredOutcome{kind: outcomeEmpty}
	}
	return structuredOutcome{kind: outcomeHit, context: out.Context}
}

// tryRetrieval runs hybrid search under its own timeout. The top hit
// must clear the relevance threshold for retrieved context to be used;
// otherwise the query falls through to context-free inference.
func (p *Pipeline) tryRetrieval(ctx context.Context, query string, q Query) retrievalOutcome {
	if p.retriever == nil {
		return retrievalOutcome{kind: outcomeEmpty}
	}
	rctx, cancel := context.WithTimeout(ctx, p.cfg.RetrievalTimeout)
	defer cancel()

	hits, err := p.retriever.Search(rctx, query, q.Role, q.Department, nil)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[PIPELINE] retrieval timed out")
		return retrievalOutcome{kind: outcomeTimedOut}
	case err != nil:
		log.Printf("[PIPELINE] retrieval failed: %v", err)
		return retrievalOutcome{kind: outcomeFailed}
	}
	if len(hits) == 0 || hits[0].Relevance <= p.cfg.RelevanceThreshold {
		return retrievalOutcome{kind: outcomeEmpty}
	}

	contextText, citations, docIDs := buildRetrievalContext(hits, p.cfg.MaxContextChars)
	return retrievalOutcome{
		kind:      outcomeHit,
		context:   contextText,
		citations: citations,
		count:     len(hits),
		docIDs:    docIDs,
	}
}

func (p *Pipeline) infer(ctx context.Context, query, contextText string) (string, error) {
	ictx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
	defer cancel()
	return p.inferencer.Complete(ictx, query, contextText, p.cfg.MaxTokens, p.cfg.Temperature)
}

// #endregion

// #region finalize

// finalize stamps timing, appends the audit record and returns the
// terminal result. An audit failure is logged but does not replace the
// user-facing response.
func (p *Pipeline) finalize(ctx context.Context, q Query, res Result, riskLevel string, docIDs []string, t0 time.Time) Result {
	res.ElapsedMs = time.Since(t0).Milliseconds()

	if p.ledger != nil {
		if _, err := p.ledger.Append(ctx, audit.Interaction{
			Requester: q.RequesterID,
			Role:      q.Role,
			Query:     res.Query,
			DocIDs:    docIDs,
			Output:    res.Response,
			RiskLevel: riskLevel,
		}); err != nil {
			log.Printf("[PIPELINE] audit append failed: %v", err)
		}
	}

	log.Printf("[PIPELINE] class=%s structured=%v retrieved=%d time=%dms status=%s",
		res.Classification, res.StructuredUsed, res.RetrievedCount, res.ElapsedMs, res.Status)
	return res
}

// #endregion
