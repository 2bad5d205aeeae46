// Package mistral provides the VisionService adapter for the Mistral chat
// completions API. Text ranking uses a language model, yes/no judgements and
// frame descriptions use a vision model fed base64 data URLs.
package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Ensure VisionService implements the interfaces.
var (
	_ driven.VisionService    = (*VisionService)(nil)
	_ driven.PromptStoreAware = (*VisionService)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.mistral.ai/v1"
	DefaultTextModel   = "mistral-large-latest"
	DefaultVisionModel = "pixtral-12b-2409"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 2
)

const (
	rankTemperature  = 0.2
	imageTemperature = 0.7
	imageMaxTokens   = 1000

	defaultRetryDelay = time.Second
	// maxRetryWait caps how long a 429 is waited out in place. Longer waits
	// go back to the caller so the key can be benched instead.
	maxRetryWait = 5 * time.Second
)

// Fallback prompts when no PromptStore is configured.
const (
	fallbackRankPrompt     = "Запрос: {query}. Из списка ниже выбери кадры, подходящие под запрос, и верни только их имена файлов, по одному на строку.\n{images}"
	fallbackYesNoPrompt    = "Соответствует ли этот кадр запросу «{query}»? Ответь только «да» или «нет»."
	fallbackDescribePrompt = "Опиши, что изображено на этом кадре."
)

// Config holds configuration for the Mistral vision service.
type Config struct {
	// BaseURL is the API base URL (default: https://api.mistral.ai/v1).
	BaseURL string

	// TextModel ranks frame descriptions (default: mistral-large-latest).
	TextModel string

	// VisionModel judges and describes frame images (default: pixtral-12b-2409).
	VisionModel string

	// Timeout bounds a single HTTP request (default: 30s).
	Timeout time.Duration

	// MaxRetries is the number of retries after timeouts, 429 and 5xx.
	// Negative means none; zero is taken literally.
	MaxRetries int

	// FrameExts are the extensions that mark a reply line as a file name
	// (default: .webp).
	FrameExts []string

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// VisionService calls the chat completions endpoint. The API key is chosen
// per call by the dispatcher.
type VisionService struct {
	client      *http.Client
	baseURL     string
	textModel   string
	visionModel string
	maxRetries  int
	frameExts   []string
	retryDelay  time.Duration
	promptStore driven.PromptStore
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage content is either a string or a list of contentParts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// statusError is a non-2xx reply.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("mistral: status %d: %s", e.status, e.body)
}

// NewVisionService creates a new Mistral vision service.
func NewVisionService(cfg Config) *VisionService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if len(cfg.FrameExts) == 0 {
		cfg.FrameExts = []string{".webp"}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	exts := make([]string, len(cfg.FrameExts))
	for i, ext := range cfg.FrameExts {
		exts[i] = strings.ToLower(ext)
	}

	return &VisionService{
		client:      client,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		textModel:   cfg.TextModel,
		visionModel: cfg.VisionModel,
		maxRetries:  cfg.MaxRetries,
		frameExts:   exts,
		retryDelay:  defaultRetryDelay,
	}
}

// RankFrames asks the text model which of frames match query.
func (s *VisionService) RankFrames(ctx context.Context, apiKey, query string, frames []domain.FrameText) ([]string, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	lines := make([]string, 0, len(frames))
	for _, f := range frames {
		lines = append(lines, f.Path+": "+f.Text)
	}
	prompt := fillPrompt(s.loadPrompt(driven.PromptSmartSearch, fallbackRankPrompt), query, strings.Join(lines, "\n"))

	reply, err := s.complete(ctx, apiKey, chatRequest{
		Model:       s.textModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: rankTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("rank frames: %w", err)
	}
	return s.parseFileNames(reply), nil
}

// JudgeFrame asks the vision model whether the image matches query.
func (s *VisionService) JudgeFrame(ctx context.Context, apiKey, imagePath, query string) (bool, error) {
	prompt := fillPrompt(s.loadPrompt(driven.PromptYesNo, fallbackYesNoPrompt), query, "")
	reply, err := s.askImage(ctx, apiKey, imagePath, prompt)
	if err != nil {
		return false, fmt.Errorf("judge frame: %w", err)
	}
	return isYes(reply), nil
}

// DescribeFrame asks the vision model for a description of the image.
func (s *VisionService) DescribeFrame(ctx context.Context, apiKey, imagePath string) (string, error) {
	prompt := s.loadPrompt(driven.PromptImageDescription, fallbackDescribePrompt)
	reply, err := s.askImage(ctx, apiKey, imagePath, prompt)
	if err != nil {
		return "", fmt.Errorf("describe frame: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// ModelName returns the text and vision model names.
func (s *VisionService) ModelName() string {
	return s.textModel + " / " + s.visionModel
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the service uses built-in fallback prompts.
func (s *VisionService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

func (s *VisionService) askImage(ctx context.Context, apiKey, imagePath, prompt string) (string, error) {
	dataURL, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, apiKey, chatRequest{
		Model: s.visionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: prompt},
			},
		}},
		Temperature: imageTemperature,
		MaxTokens:   imageMaxTokens,
	})
}

// complete sends req, retrying transient failures.
func (s *VisionService) complete(ctx context.Context, apiKey string, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.retryDelay
			var rl *domain.RateLimitError
			if errors.As(lastErr, &rl) && rl.RetryAfter > wait {
				wait = rl.RetryAfter
			}
			logger.Debug("mistral: retry %d/%d in %s after: %v", attempt, s.maxRetries, wait, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		reply, err := s.send(ctx, apiKey, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil || !s.retryable(err) {
			break
		}
	}
	return "", lastErr
}

func (s *VisionService) retryable(err error) bool {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter <= maxRetryWait
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (s *VisionService) send(ctx context.Context, apiKey string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &domain.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("mistral error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("mistral: no response choices returned")
	}
	return chat.Choices[0].Message.Content, nil
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (s *VisionService) loadPrompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

func fillPrompt(template, query, images string) string {
	return strings.NewReplacer("{query}", query, "{images}", images).Replace(template)
}

var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)

// parseFileNames keeps reply lines that end with a frame extension, minus
// list markers and quoting.
func (s *VisionService) parseFileNames(reply string) []string {
	var names []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(line, "`\"'«» ")
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, ext := range s.frameExts {
			if strings.HasSuffix(lower, ext) {
				names = append(names, line)
				break
			}
		}
	}
	return names
}

// isYes treats a reply starting with "д" or "y" as yes.
func isYes(reply string) bool {
	reply = strings.TrimLeft(strings.ToLower(strings.TrimSpace(reply)), "«\"'`*")
	return strings.HasPrefix(reply, "д") || strings.HasPrefix(reply, "y")
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// parseRetryAfter reads delay-seconds or an HTTP date. Zero when absent.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
