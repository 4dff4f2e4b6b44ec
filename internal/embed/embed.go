package embed

// #region imports
import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// #endregion

// #region interface

// Embedder produces fixed-dimension, L2-normalized vectors. Deterministic
// for identical input and dimension-stable for the lifetime of one index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// #endregion

// #region ollama-embedder

// OllamaEmbedder generates embeddings via the Ollama API.
type OllamaEmbedder struct {
	client     *api.Client
	model      string
	dim        int
	maxRetries int
	timeout    time.Duration
}

// NewOllamaEmbedder builds an embedder for the given model. dim must match
// the model's output dimension; it is validated on every call.
func NewOllamaEmbedder(model string, dim int) *OllamaEmbedder {
	client := api.NewClient(envconfig.Host(), http.DefaultClient)
	return &OllamaEmbedder{
		client:     client,
		model:      model,
		dim:        dim,
		maxRetries: 3,
		timeout:    30 * time.Second,
	}
}

// Dimension returns the configured vector dimension.
func (e *OllamaEmbedder) Dimension() int {
	return e.dim
}

// Embed returns the normalized embedding for text, retrying transient
// failures with linear backoff.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		vec, err := e.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embed after %d retries: %w", e.maxRetries, lastErr)
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings(reqCtx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Embedding) != e.dim {
		return nil, fmt.Errorf("embedding dimension %d, expected %d", len(resp.Embedding), e.dim)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return Normalize(vec), nil
}

// #endregion

// #region normalize

// Normalize scales v to unit L2 norm in place and returns it. Inner
// product over normalized vectors equals cosine similarity; every vector
// entering the index must pass through here first.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// #endregion
