// Package bedrock provides an embedding backend for Amazon Bedrock models.
// Titan (v1, v2) and Cohere embed models are supported; each family has
// its own request and response shape.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/embedding"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Backend implements the interface.
var _ driven.EmbeddingBackend = (*Backend)(nil)

// Default configuration values.
const (
	DefaultRegion  = "us-east-1"
	DefaultModel   = "amazon.titan-embed-text-v2:0"
	DefaultTimeout = 30 * time.Second

	// cohereMaxTexts is the Cohere embed API limit per request.
	cohereMaxTexts = 96
)

// Invoker is the subset of the Bedrock runtime API the backend uses.
type Invoker interface {
	InvokeModel(
		ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds configuration for the Bedrock backend.
type Config struct {
	// Name labels the backend. Defaults to bedrock/<model>.
	Name string

	// Region is the AWS region (default: us-east-1).
	Region string

	// Model is the Bedrock model ID.
	Model string

	// Dimensions is the vector size. Titan v2 sends it as an output size.
	Dimensions int

	// BatchSize caps texts per EmbedBatch call. Titan embeds one text per
	// request; Cohere accepts up to 96.
	BatchSize int

	// Timeout bounds one InvokeModel call.
	Timeout time.Duration
}

// Backend generates embeddings with Bedrock InvokeModel.
type Backend struct {
	client     Invoker
	name       string
	model      string
	family     family
	dimensions int
	batchSize  int
	timeout    time.Duration
}

// New loads the default AWS credential chain and creates a backend. SDK
// retries are disabled; the embedding provider owns the retry policy.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return NewWithClient(client, cfg)
}

// NewWithClient creates a backend around an existing client.
func NewWithClient(client Invoker, cfg Config) (*Backend, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	fam, err := familyOf(cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	if cfg.Dimensions == 0 {
		return nil, &domain.ConfigurationError{
			Field:  "embedding.backends.dimensions",
			Reason: fmt.Sprintf("unknown dimensionality for model %q", cfg.Model),
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = fam.maxTexts()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "bedrock/" + cfg.Model
	}

	return &Backend{
		client:     client,
		name:       cfg.Name,
		model:      cfg.Model,
		family:     fam,
		dimensions: cfg.Dimensions,
		batchSize:  min(cfg.BatchSize, fam.maxTexts()),
		timeout:    cfg.Timeout,
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string { return b.name }

// ModelName returns the Bedrock model ID.
func (b *Backend) ModelName() string { return b.model }

// Dimensions returns the embedding vector size.
func (b *Backend) Dimensions() int { return b.dimensions }

// BatchSize returns the maximum texts per call.
func (b *Backend) BatchSize() int { return b.batchSize }

// EmbedBatch embeds texts. Titan models get one request per text; Cohere
// models get one request per batch.
func (b *Backend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b.family == familyCohere {
		return b.invokeCohere(ctx, texts)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := b.invokeTitan(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Ping embeds a short probe text, since the runtime API has no cheaper
// authenticated call.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.EmbedBatch(ctx, []string{"ping"})
	return err
}

// Close releases resources.
func (b *Backend) Close() error {
	return nil
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize,omitempty"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

type cohereRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate,omitempty"`
}

type cohereResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (b *Backend) invokeTitan(ctx context.Context, text string) ([]float32, error) {
	req := titanRequest{InputText: text}
	if b.family == familyTitanV2 {
		req.Dimensions = b.dimensions
		req.Normalize = true
	}

	var resp titanResponse
	if err := b.invoke(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%s: empty embedding: %w", b.name, domain.ErrBackendUnavailable)
	}
	return resp.Embedding, nil
}

func (b *Backend) invokeCohere(ctx context.Context, texts []string) ([][]float32, error) {
	inputType := "search_document"
	if domain.EmbeddingPurposeFrom(ctx) == domain.PurposeQuery {
		inputType = "search_query"
	}

	var resp cohereResponse
	if err := b.invoke(ctx, cohereRequest{Texts: texts, InputType: inputType, Truncate: "END"}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%s: got %d embeddings for %d texts: %w",
			b.name, len(resp.Embeddings), len(texts), domain.ErrBackendUnavailable)
	}
	return resp.Embeddings, nil
}

func (b *Backend) invoke(ctx context.Context, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", b.name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.client.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return classify(b.name, err)
	}
	if err := json.Unmarshal(out.Body, resp); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", b.name, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// classify maps Bedrock error codes onto domain sentinels.
func classify(backend string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return embedding.TransportError(backend, err)
	}

	var sentinel error
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
		sentinel = domain.ErrRateLimited
	case "ModelNotReadyException", "ModelTimeoutException", "ServiceUnavailableException",
		"InternalServerException", "ModelErrorException":
		sentinel = domain.ErrBackendUnavailable
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException",
		"InvalidSignatureException":
		sentinel = domain.ErrAuthInvalid
	case "ValidationException":
		sentinel = domain.ErrInvalidInput
	case "ResourceNotFoundException":
		sentinel = domain.ErrNotFound
	default:
		if apiErr.ErrorFault() == smithy.FaultServer {
			sentinel = domain.ErrBackendUnavailable
		} else {
			return fmt.Errorf("%s: %w", backend, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", backend, sentinel, err)
}

type family int

const (
	familyTitanV1 family = iota
	familyTitanV2
	familyCohere
)

func (f family) maxTexts() int {
	if f == familyCohere {
		return cohereMaxTexts
	}
	return 1
}

func familyOf(model string) (family, error) {
	switch {
	case strings.HasPrefix(model, "amazon.titan-embed-text-v2"):
		return familyTitanV2, nil
	case strings.HasPrefix(model, "amazon.titan-embed"):
		return familyTitanV1, nil
	case strings.HasPrefix(model, "cohere.embed"):
		return familyCohere, nil
	default:
		return 0, &domain.ConfigurationError{
			Field:  "embedding.backends.model",
			Reason: fmt.Sprintf("unsupported bedrock embedding model %q", model),
		}
	}
}
