// Package generate produces text in the user's style through the upstream
// completion API, falling back to canned replies when it is unavailable.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kalambet/quill/internal/composer"
	"github.com/kalambet/quill/internal/proxy"
	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/style"
)

// ErrEmptyPrompt is returned when Generate is called without a prompt.
var ErrEmptyPrompt = errors.New("prompt is required")

// Fallback reasons.
const (
	ReasonNoAPIKey    = "no_api_key"
	ReasonRateLimited = "rate_limited"
	ReasonUpstream    = "upstream_error"
)

// FallbackModel is reported as the model of canned replies.
const FallbackModel = "quill/fallback"

// Profiles supplies the current style profile. Implemented by profile.Manager.
type Profiles interface {
	GetProfile() (style.Profile, error)
}

// Completer performs a non-streaming completion. Implemented by proxy.Client.
type Completer interface {
	HasKey() bool
	Complete(ctx context.Context, req proxy.ChatRequest) (proxy.ChatResponse, error)
}

// Log persists generation records. Implemented by storage.Store.
type Log interface {
	SaveGeneration(g storage.Generation) error
}

// Recorder receives generation outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	GenerationFinished(fallback bool, elapsed time.Duration)
}

// Options configures a Service.
type Options struct {
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second; <= 0 disables limiting
	Burst     int
}

// Result is the outcome of one generation.
type Result struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Model    string `json:"model"`
	Reason   string `json:"reason,omitempty"`
}

// Service generates text for a prompt in the user's style.
type Service struct {
	profiles Profiles
	client   Completer
	composer *composer.Composer
	log      Log
	recorder Recorder
	limiter  *rate.Limiter
	model    string
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a Service. log and recorder may be nil.
func NewService(profiles Profiles, client Completer, log Log, opts Options) *Service {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		profiles: profiles,
		client:   client,
		composer: composer.New(0),
		log:      log,
		limiter:  rate.NewLimiter(limit, burst),
		model:    opts.Model,
		timeout:  timeout,
		now:      time.Now,
	}
}

// SetRecorder attaches a metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Generate composes the style block with prompt and asks the upstream model.
// Upstream failures are not returned as errors; they produce a fallback
// result instead.
func (s *Service) Generate(ctx context.Context, prompt string) (Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Result{}, ErrEmptyPrompt
	}

	p, err := s.profiles.GetProfile()
	if err != nil {
		return Result{}, fmt.Errorf("loading profile: %w", err)
	}
	stylePrompt := style.Synthesize(p)

	start := s.now()
	res, upstreamErr := s.complete(ctx, prompt, stylePrompt, p)
	if upstreamErr != nil {
		slog.Warn("generation fell back", "reason", res.Reason, "error", upstreamErr)
	}
	elapsed := s.now().Sub(start)
	res.ID = uuid.New().String()

	if s.recorder != nil {
		s.recorder.GenerationFinished(res.Fallback, elapsed)
	}

	if s.log != nil && !p.Settings.PrivacyMode {
		g := storage.Generation{
			ID:          res.ID,
			CreatedAt:   start,
			Prompt:      prompt,
			StylePrompt: stylePrompt,
			Model:       res.Model,
			Output:      res.Text,
			Fallback:    res.Fallback,
			LatencyMS:   elapsed.Milliseconds(),
		}
		if upstreamErr != nil {
			g.Error = upstreamErr.Error()
		}
		if err := s.log.SaveGeneration(g); err != nil {
			slog.Error("saving generation", "id", res.ID, "error", err)
		}
	}

	return res, nil
}

// Enrich places the current style block in the system message of a
// caller-supplied chat request.
func (s *Service) Enrich(req proxy.ChatRequest) (proxy.ChatRequest, error) {
	p, err := s.profiles.GetProfile()
	if err != nil {
		return req, fmt.Errorf("loading profile: %w", err)
	}
	return s.composer.Compose(req, style.Synthesize(p), p.UserOverrides.CustomInstructions)
}

// complete returns a fallback result together with the cause when the
// upstream call cannot be made or fails.
func (s *Service) complete(ctx context.Context, prompt, stylePrompt string, p style.Profile) (Result, error) {
	tone := style.EffectiveTone(p)

	if s.client == nil || !s.client.HasKey() {
		return fallback(tone, ReasonNoAPIKey), proxy.ErrNoAPIKey
	}
	if !s.limiter.Allow() {
		return fallback(tone, ReasonRateLimited), errors.New("local rate limit exceeded")
	}

	req, err := s.composer.ForPrompt(s.model, prompt, stylePrompt, p.UserOverrides.CustomInstructions)
	if err != nil {
		return fallback(tone, ReasonUpstream), err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return fallback(tone, ReasonUpstream), err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fallback(tone, ReasonUpstream), errors.New("empty completion")
	}

	model := resp.Model
	if model == "" {
		model = s.model
	}
	return Result{Text: text, Model: model}, nil
}

var fallbackReplies = map[style.Tone]string{
	style.ToneFormal:  "Thank you for your message. I am unable to prepare a complete response at the moment and will follow up shortly.",
	style.ToneNeutral: "Thanks for your message. I can't put together a full response right now, but I'll follow up soon.",
	style.ToneCasual:  "Hey, thanks! Can't write up a proper reply right now, but I'll get back to you soon.",
}

func fallback(tone style.Tone, reason string) Result {
	text, ok := fallbackReplies[tone]
	if !ok {
		text = fallbackReplies[style.ToneNeutral]
	}
	return Result{Text: text, Fallback: true, Model: FallbackModel, Reason: reason}
}
