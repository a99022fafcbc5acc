package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Domain models
	JinaTextModel   = "jina-embeddings-v3"
	JinaCodeModel   = "jina-embeddings-v2-base-code"
	OpenAITextModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	MaxBatchSize = 100

	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	openaiEndpoint = "https://api.openai.com/v1/embeddings"
)

// httpProvider is the shared implementation for OpenAI-compatible
// embedding APIs; Jina and OpenAI differ only in endpoint, auth, models,
// and dimension.
type httpProvider struct {
	name       string
	endpoint   string
	apiKey     string
	models     map[types.EmbeddingDomain]string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates a Jina AI embedder. Jina serves the CODE domain
// with a code-specialized model.
func NewJinaProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: JINA_API_KEY not set", ErrNoProviderEnabled)
	}
	return &httpProvider{
		name:     ProviderJina,
		endpoint: jinaEndpoint,
		apiKey:   apiKey,
		models: map[types.EmbeddingDomain]string{
			types.DomainText: JinaTextModel,
			types.DomainCode: JinaCodeModel,
		},
		dimension:  JinaDimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}, nil
}

// NewOpenAIProvider creates an OpenAI embedder. OpenAI serves both
// domains with the same general-purpose model.
func NewOpenAIProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProviderEnabled)
	}
	return &httpProvider{
		name:     ProviderOpenAI,
		endpoint: openaiEndpoint,
		apiKey:   apiKey,
		models: map[types.EmbeddingDomain]string{
			types.DomainText: OpenAITextModel,
			types.DomainCode: OpenAITextModel,
		},
		dimension:  OpenAIDimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}, nil
}

func (p *httpProvider) Embed(ctx context.Context, text string, domain types.EmbeddingDomain) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	key := cacheKey(text, domain)
	if p.cache != nil {
		if vector, ok := p.cache.Get(key); ok {
			return vector, nil
		}
	}

	vectors, err := p.EmbedBatch(ctx, []string{text}, domain)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return vectors[0], nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string, domain types.EmbeddingDomain) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownDomain, domain)
	}

	model := p.models[domain]

	vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		return p.callAPI(ctx, texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if p.cache != nil {
		for i, vector := range vectors {
			p.cache.Set(cacheKey(texts[i], domain), vector)
		}
	}
	return vectors, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (p *httpProvider) Dimension() int { return p.dimension }
func (p *httpProvider) Provider() string {
	return p.name
}

func (p *httpProvider) Model(domain types.EmbeddingDomain) string {
	return p.models[domain]
}

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider generates deterministic hash-derived vectors without any
// network dependency. Vectors are stable per text and domain, which is
// what tests and offline development need; they carry no semantic signal.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the deterministic local embedder
func NewLocalProvider(cache *Cache) (Embedder, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) Embed(ctx context.Context, text string, domain types.EmbeddingDomain) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownDomain, domain)
	}

	key := cacheKey(text, domain)
	if l.cache != nil {
		if vector, ok := l.cache.Get(key); ok {
			return vector, nil
		}
	}

	vector := hashVector(text, domain)
	if l.cache != nil {
		l.cache.Set(key, vector)
	}
	return vector, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string, domain types.EmbeddingDomain) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := l.Embed(ctx, text, domain)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model(domain types.EmbeddingDomain) string {
	return "hash-" + string(domain)
}
func (l *LocalProvider) Close() error { return nil }

// hashVector expands a seeded SHA-256 stream into a unit-normalized
// vector of LocalDimension components.
func hashVector(text string, domain types.EmbeddingDomain) []float32 {
	vector := make([]float32, LocalDimension)
	seed := sha256.Sum256([]byte(string(domain) + "\x00" + text))

	var norm float64
	block := seed
	for i := 0; i < LocalDimension; i++ {
		if i%8 == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.LittleEndian.Uint32(block[(i%8)*4:])
		v := float32(bits)/float32(math.MaxUint32)*2 - 1
		vector[i] = v
		norm += float64(v) * float64(v)
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}
