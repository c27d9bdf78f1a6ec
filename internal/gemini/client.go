package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postcast/internal/ratelimit"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 60 * time.Second
	defaultRetryBaseDelay = 4 * time.Second
	defaultRetryAttempts  = 3

	imageAspectRatio = "16:9"
)

// Config captures the runtime settings required to talk to the Gemini API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	ImageModel     string
	TimeoutSeconds int
}

// Client wraps the Gemini generateContent API for both the text and the image
// model.
type Client struct {
	cfg        Config
	httpClient *http.Client

	textLimiter  *ratelimit.Limiter
	imageLimiter *ratelimit.Limiter

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTextLimiter throttles calls to the text model.
func WithTextLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.textLimiter = limiter
	}
}

// WithImageLimiter throttles calls to the image model.
func WithImageLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.imageLimiter = limiter
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			// The SDK-style "models/..." prefix is tolerated; the REST path
			// wants the bare identifier.
			Model:          strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/"),
			ImageModel:     strings.TrimPrefix(strings.TrimSpace(cfg.ImageModel), "models/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	BlockReason  string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, block_reason=%q, response_snippet=%s)",
		e.Op,
		e.FinishReason,
		e.BlockReason,
		e.Snippet,
	)
}

// GenerateText sends the prompt to the text model and returns its reply with
// surrounding whitespace removed.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("gemini text: prompt required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("gemini text: api key required")
	}
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	result, err := c.generateWithRetry(ctx, c.textLimiter, c.cfg.Model, payload, "gemini text", false)
	if err != nil {
		return "", err
	}
	return result.text, nil
}

// GenerateImage renders an image from the prompt alone and returns the raw
// encoded bytes, typically PNG.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return c.generateImage(ctx, prompt, nil, "")
}

// GenerateImageWithReference renders an image guided by a reference picture so
// the result keeps the reference's composition and branding.
func (c *Client) GenerateImageWithReference(ctx context.Context, prompt string, reference []byte, mimeType string) ([]byte, error) {
	if len(reference) == 0 {
		return nil, errors.New("gemini image: reference image required")
	}
	return c.generateImage(ctx, prompt, reference, mimeType)
}

func (c *Client) generateImage(ctx context.Context, prompt string, reference []byte, mimeType string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("gemini image: prompt required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("gemini image: api key required")
	}
	parts := []part{{Text: prompt}}
	if len(reference) > 0 {
		if strings.TrimSpace(mimeType) == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(reference),
		}})
	}
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: imageAspectRatio},
		},
	}
	result, err := c.generateWithRetry(ctx, c.imageLimiter, c.cfg.ImageModel, payload, "gemini image", true)
	if err != nil {
		return nil, err
	}
	return result.image, nil
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	// Thinking models mark reasoning traces; those parts never carry the
	// answer payload.
	Thought bool `json:"thought,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// generationResult carries whichever payload kind the call asked for.
type generationResult struct {
	text  string
	image []byte
}

func (c *Client) generateWithRetry(ctx context.Context, limiter *ratelimit.Limiter, model string, payload generateContentRequest, op string, wantImage bool) (generationResult, error) {
	var empty generationResult
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return empty, err
			}
		}
		response, body, err := c.sendGenerateOnce(ctx, model, payload)
		if err == nil {
			result, extractErr := extractGenerationPayload(response, body, op, wantImage)
			if extractErr == nil {
				return result, nil
			}
			err = extractErr
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return empty, err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return empty, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return empty, fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func extractGenerationPayload(response generateContentResponse, body []byte, op string, wantImage bool) (generationResult, error) {
	var result generationResult
	if len(response.Candidates) == 0 {
		if reason := extractBlockReason(response); reason != "" {
			return result, fmt.Errorf("%s: prompt blocked (%s)", op, reason)
		}
		return result, fmt.Errorf("%s: empty candidates", op)
	}

	var finishReason string
	for _, candidate := range response.Candidates {
		if finishReason == "" {
			finishReason = strings.TrimSpace(candidate.FinishReason)
		}
		var text strings.Builder
		for _, p := range candidate.Content.Parts {
			if p.Thought {
				continue
			}
			if wantImage && p.InlineData != nil && strings.TrimSpace(p.InlineData.Data) != "" {
				decoded, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return result, fmt.Errorf("%s: decode image payload: %w", op, err)
				}
				result.image = decoded
				return result, nil
			}
			text.WriteString(p.Text)
		}
		if !wantImage {
			if trimmed := strings.TrimSpace(text.String()); trimmed != "" {
				result.text = trimmed
				return result, nil
			}
		}
	}

	return result, &emptyContentError{
		Op:           op,
		FinishReason: finishReason,
		BlockReason:  extractBlockReason(response),
		Snippet:      summarizePayloadSnippet(string(body)),
	}
}

func extractBlockReason(response generateContentResponse) string {
	if response.PromptFeedback == nil {
		return ""
	}
	return strings.TrimSpace(response.PromptFeedback.BlockReason)
}

func (c *Client) sendGenerateOnce(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, []byte, error) {
	var response generateContentResponse
	if strings.TrimSpace(model) == "" {
		return response, nil, errors.New("gemini request: model required")
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimSuffix(c.cfg.BaseURL, "/"), model)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return response, nil, fmt.Errorf("gemini request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return response, nil, fmt.Errorf("gemini request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response, nil, fmt.Errorf("gemini request: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response, nil, fmt.Errorf("gemini request: read body (timeout=%s): %w", c.timeoutDuration(), err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return response, body, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, body, fmt.Errorf("gemini request: decode response: %w", err)
	}
	if response.Error != nil {
		return response, body, fmt.Errorf("gemini request: api error: %s", strings.TrimSpace(response.Error.Message))
	}
	return response, body, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil {
		return defaultHTTPTimeout
	}
	if c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) retryAttempts() int {
	if c == nil {
		return 1
	}
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts {
		return 0, false
	}
	if err == nil {
		return 0, false
	}
	if ctx == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	if _, ok := err.(*emptyContentError); ok {
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return c.backoffDelay(attempt), true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// url.Error often wraps net.Error types, but keep a conservative retry
		// for non-context errors anyway.
		if urlErr.Timeout() {
			return c.backoffDelay(attempt), true
		}
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := defaultRetryBaseDelay
	maxDelay := defaultRetryMaxDelay
	if c != nil {
		if c.retryBaseDelay >= 0 {
			base = c.retryBaseDelay
		}
		if c.retryMaxDelay > 0 {
			maxDelay = c.retryMaxDelay
		}
	}
	if base <= 0 {
		return 0
	}

	retryCount := attempt // attempt is 1-based, delay is for the next attempt.
	if retryCount <= 0 {
		retryCount = 1
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < retryCount; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMaxDelay
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("gemini retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c != nil && c.sleeper != nil {
		c.sleeper(delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
