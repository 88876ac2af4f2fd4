package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/metrics"
	"github.com/yourusername/quant-ninja/internal/models"
)

const (
	opExtract = "extract"
	opSearch  = "search"
	opVerify  = "verify"

	maxErrorBody = 2048
)

// Client calls the Gemini generateContent API
type Client struct {
	http        *RateLimitedHTTPClient
	baseURL     string
	apiKey      string
	visionModel string
	searchModel string
	cache       *ExtractionCache
	parser      *Parser
	logger      *logger.OracleLogger
	now         func() time.Time
}

// NewClient creates a new oracle client from configuration
func NewClient(cfg *config.OracleConfig, log *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	httpCfg := DefaultHTTPClientConfig()
	httpCfg.Timeout = cfg.RequestTimeout()
	httpCfg.MaxRetries = cfg.MaxRetries
	httpCfg.RetryWaitMin = time.Duration(cfg.RetryWaitMinMillis) * time.Millisecond
	httpCfg.RetryWaitMax = time.Duration(cfg.RetryWaitMaxMillis) * time.Millisecond
	httpCfg.RateLimit = cfg.RateLimit

	return &Client{
		http:        NewRateLimitedHTTPClient(httpCfg, log),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		visionModel: cfg.VisionModel,
		searchModel: cfg.SearchModel,
		cache:       NewExtractionCache(cfg.CacheTTL(), cfg.CacheMaxSize),
		parser:      NewParser(),
		logger:      logger.NewOracleLogger(log),
		now:         time.Now,
	}, nil
}

// ExtractCandidates reads candidate bets out of a dashboard screenshot.
// An unchanged frame is answered from cache.
func (c *Client) ExtractCandidates(ctx context.Context, frame []byte, mimeType string) (*Extraction, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidResponse)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(frame)
	}

	key := NewFrameKey(frame, c.visionModel)
	if cached, ok := c.cache.Get(key); ok {
		c.logger.LogOracleRequest(opExtract, c.visionModel, true, 0)
		return cached, nil
	}

	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(frame)}},
				{Text: extractPrompt},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   extractSchema,
		},
	}

	resp, err := c.generate(ctx, opExtract, c.visionModel, req)
	if err != nil {
		return nil, err
	}

	extraction, err := c.parser.ParseExtraction(resp.text())
	if err != nil {
		c.logger.LogOracleError(opExtract, err)
		return nil, err
	}

	observedAt := c.now()
	for i := range extraction.Candidates {
		extraction.Candidates[i].ObservedAt = observedAt
	}

	metrics.RecordRejectedRecords(opExtract, extraction.Rejected)
	c.logger.LogExtraction(opExtract, extraction.Valid, len(extraction.Candidates), extraction.Rejected)
	c.cache.Set(key, extraction)
	return extraction, nil
}

// SearchCandidates asks the oracle to find upcoming +EV lines with web search.
// The grounding references are attached to every candidate.
func (c *Client) SearchCandidates(ctx context.Context) (*Extraction, error) {
	now := c.now()
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: searchPrompt(now)}},
		}},
		Tools: searchTool(),
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   searchSchema,
		},
	}

	resp, err := c.generate(ctx, opSearch, c.searchModel, req)
	if err != nil {
		return nil, err
	}

	extraction, err := c.parser.ParseCandidateList(resp.text())
	if err != nil {
		c.logger.LogOracleError(opSearch, err)
		return nil, err
	}

	sources := resp.sources()
	for i := range extraction.Candidates {
		extraction.Candidates[i].ObservedAt = now
		extraction.Candidates[i].Sources = append([]models.Source(nil), sources...)
	}

	metrics.RecordRejectedRecords(opSearch, extraction.Rejected)
	c.logger.LogExtraction(opSearch, extraction.Valid, len(extraction.Candidates), extraction.Rejected)
	return extraction, nil
}

// VerifyOutcome asks the oracle whether a position won or lost. Anything other
// than a clear WON or LOST answer comes back as a PENDING outcome.
func (c *Client) VerifyOutcome(ctx context.Context, p models.Position) (*models.Outcome, error) {
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: verifyPrompt(p)}},
		}},
		Tools: searchTool(),
	}

	resp, err := c.generate(ctx, opVerify, c.searchModel, req)
	if err != nil {
		return nil, err
	}

	verdict, details := ParseVerdict(resp.text())
	outcome := &models.Outcome{
		PositionID: p.ID,
		Verdict:    verdict,
		Note:       details,
	}
	if outcome.IsConclusive() {
		outcome.Sources = resp.sources()
	}

	c.logger.LogVerification(p.ID, string(verdict), len(outcome.Sources))
	return outcome, nil
}

// CacheStats exposes the extraction cache counters
func (c *Client) CacheStats() (hits, misses uint64, ratio float64) {
	return c.cache.Stats()
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) generate(ctx context.Context, operation, model string, req generateRequest) (result *generateResponse, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOracleRequest(operation, err, time.Since(start).Seconds())
		if err != nil {
			c.logger.LogOracleError(operation, err)
			return
		}
		c.logger.LogOracleRequest(operation, model, false, float64(time.Since(start).Milliseconds()))
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	resp, err := c.http.Post(ctx, url, map[string]string{"x-goog-api-key": c.apiKey}, body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrInvalidResponse, err)
	}

	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: blocked: %s", ErrEmptyResponse, decoded.PromptFeedback.BlockReason)
	}
	if decoded.text() == "" {
		return nil, ErrEmptyResponse
	}

	return &decoded, nil
}
