// Package sandbox evaluates generated code against a dataset with a fixed set
// of bindings, a wall-clock timeout and bounded concurrency.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/config"
)

// Language of evaluated code.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageJavaScript Language = "javascript"
)

func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageJavaScript, "":
		return LanguageJavaScript, nil
	case LanguageGo:
		return LanguageGo, nil
	}
	return "", fmt.Errorf("unsupported language: %s", s)
}

// Config defines sandbox limits.
type Config struct {
	Timeout       time.Duration
	MaxStackDepth int
	MaxConcurrent int64

	// ForbiddenGlobals are set to undefined before JavaScript runs.
	ForbiddenGlobals []string
	// AllowedPackages may be imported by Go-dialect code.
	AllowedPackages []string
}

func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		MaxStackDepth:    1000,
		MaxConcurrent:    4,
		ForbiddenGlobals: []string{"eval", "Function", "require", "import"},
		AllowedPackages:  []string{"math", "sort", "strconv", "strings"},
	}
}

// FromConfig builds a Config from the application settings.
func FromConfig(c config.SandboxConfig) Config {
	cfg := DefaultConfig()
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.MaxStackDepth > 0 {
		cfg.MaxStackDepth = c.MaxStackDepth
	}
	if c.MaxConcurrent > 0 {
		cfg.MaxConcurrent = c.MaxConcurrent
	}
	return cfg
}

// Runner executes code. It is safe for concurrent use; at most
// Config.MaxConcurrent evaluations run at once.
type Runner struct {
	cfg       Config
	validator *Validator
	sem       *semaphore.Weighted
	log       *zap.Logger
}

func NewRunner(cfg Config, log *zap.Logger) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		validator: NewValidator(cfg),
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		log:       log,
	}
}

func (r *Runner) Config() Config { return r.cfg }

// Validate checks code against the forbidden constructs of its language.
func (r *Runner) Validate(lang Language, code string) error {
	if err := r.validator.Validate(lang, code); err != nil {
		return apperr.New(apperr.KindEvaluation, "validate", err)
	}
	return nil
}

func (r *Runner) acquire(ctx context.Context) (func(), error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "acquire sandbox", err)
	}
	return func() { r.sem.Release(1) }, nil
}
