package enhancer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/promptcredits/pkg/logger"
)

// SystemInstruction steers the model towards copy-ready prompts.
const SystemInstruction = `You are an expert prompt enhancer. Transform the user's basic request into a detailed, professional, ready-to-use prompt that can be directly copied and pasted to any AI model.

Guidelines:
- Create a DIRECT prompt that starts with "You are..." or "Your task is..."
- Make it immediately usable - no meta-instructions
- Include specific role, task, context, and output format
- Add relevant constraints and guidelines
- Make it comprehensive and action-oriented
- Structure it professionally with clear sections

Return ONLY the final enhanced prompt - ready to copy and paste.

User's request to enhance:`

// Generator is a single text-in, text-out model call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Config struct {
	APIKey  string        `env:"GEMINI_API_KEY,required"`
	Model   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	Timeout time.Duration `env:"ENHANCE_TIMEOUT" envDefault:"30s"`
}

type Service struct {
	gen         Generator
	timeout     time.Duration
	instruction string
	logger      *slog.Logger
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithInstruction(text string) Option {
	return func(s *Service) {
		if text != "" {
			s.instruction = text
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(gen Generator, opts ...Option) *Service {
	if gen == nil {
		panic("enhancer: Generator is required")
	}
	s := &Service{
		gen:         gen,
		timeout:     30 * time.Second,
		instruction: SystemInstruction,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enhance rewrites original into a detailed prompt. Errors are always one of
// ErrRateLimited, ErrContentRejected or ErrServiceUnavailable.
func (s *Service) Enhance(ctx context.Context, original string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.gen.Generate(ctx, s.instruction+"\n\n\""+original+"\"")
	if err != nil {
		classified := Classify(err)
		s.logger.ErrorContext(ctx, "enhancement failed",
			logger.Component("enhancer"),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return "", classified
	}

	out = Clean(out)
	if out == "" {
		return "", errors.Join(ErrServiceUnavailable, ErrEmptyResponse)
	}
	return out, nil
}

// Clean trims the model output and drops one pair of wrapping double quotes.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// Classify maps provider errors to the three failure kinds callers handle.
func Classify(err error) error {
	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrContentRejected), errors.Is(err, ErrServiceUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errors.Join(ErrServiceUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "quota", "limit", "429", "resource_exhausted"):
		return errors.Join(ErrRateLimited, err)
	case containsAny(msg, "safety", "blocked"):
		return errors.Join(ErrContentRejected, err)
	default:
		return errors.Join(ErrServiceUnavailable, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
