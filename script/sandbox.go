package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/pkg/cache"
)

// Config holds sandbox settings.
type Config struct {
	// Timeout is the wall-clock budget for a single script invocation.
	Timeout time.Duration
	// CacheSize caps the number of cached compilation results.
	CacheSize int
}

// DefaultConfig returns the standard sandbox settings.
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		CacheSize: 256,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "script.Config", "Validate",
			fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	}
	if c.CacheSize <= 0 {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "script.Config", "Validate",
			fmt.Sprintf("cache size must be positive, got %d", c.CacheSize))
	}
	return nil
}

// Bindings is the set of host values a script may touch. The sandbox exposes
// exactly these names and nothing else.
type Bindings map[string]any

// Compiled is a reusable compiled script. It is immutable and safe to run
// from multiple goroutines concurrently.
type Compiled struct {
	Name string

	program *goja.Program
}

// compileResult caches both outcomes of a compilation so a broken script is
// not recompiled on every message.
type compileResult struct {
	compiled *Compiled
	err      error
}

// Sandbox compiles and executes user scripts in isolated JavaScript runtimes.
// Compilation results are cached per source text; every Run gets a fresh
// runtime so one invocation can never observe another's state.
type Sandbox struct {
	timeout time.Duration
	cache   *cache.Cache[compileResult]
	logger  *slog.Logger
}

// New creates a Sandbox with the given configuration.
func New(cfg Config, logger *slog.Logger) (*Sandbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	programs, err := cache.New[compileResult](cfg.CacheSize)
	if err != nil {
		return nil, pkgerrors.WrapFatal(err, "Sandbox", "New", "program cache")
	}
	return &Sandbox{
		timeout: cfg.Timeout,
		cache:   programs,
		logger:  logger.With("component", "script"),
	}, nil
}

// Timeout returns the per-invocation wall-clock budget.
func (s *Sandbox) Timeout() time.Duration {
	return s.timeout
}

// CacheStats reports cumulative program cache hits, misses and evictions.
func (s *Sandbox) CacheStats() (hits, misses, evictions int64) {
	return s.cache.Stats()
}

// Compile returns a compiled form of source, consulting the cache first.
// Failures are cached too: a script that does not parse reports the same
// error on every call without recompiling. Concurrent first compiles of the
// same source may race benignly; the cache converges on a single entry.
func (s *Sandbox) Compile(name, source string) (*Compiled, error) {
	if result, ok := s.cache.Get(source); ok {
		return result.compiled, result.err
	}

	program, err := goja.Compile(name, source, false)
	if err != nil {
		wrapped := pkgerrors.WrapInvalid(pkgerrors.ErrScriptCompile, "Sandbox", "Compile",
			fmt.Sprintf("script %q: %v", name, err))
		s.cache.Set(source, compileResult{err: wrapped})
		return nil, wrapped
	}

	compiled := &Compiled{Name: name, program: program}
	s.cache.Set(source, compileResult{compiled: compiled})
	s.logger.Debug("compiled script", "script", name, "sourceBytes", len(source))
	return compiled, nil
}

// MustCompile is Compile for static scripts known to be valid; it panics on
// compile errors. Intended for tests and built-in scripts only.
func (s *Sandbox) MustCompile(name, source string) *Compiled {
	compiled, err := s.Compile(name, source)
	if err != nil {
		panic(err)
	}
	return compiled
}

// Run executes compiled in a fresh runtime with the given bindings and
// returns the script's completion value.
//
// Exported methods on bound Go values appear to the script with a lowercased
// first letter, so a bound *message.Map is used as channelMap.put("k", v).
// The invocation is interrupted when the sandbox timeout elapses or ctx is
// canceled, whichever comes first; either way the error wraps
// ErrScriptTimeout and the runtime is discarded. A JavaScript throw wraps
// ErrScriptRuntime.
func (s *Sandbox) Run(ctx context.Context, compiled *Compiled, bindings Bindings) (Value, error) {
	if compiled == nil || compiled.program == nil {
		return Value{}, pkgerrors.WrapInvalid(pkgerrors.ErrScriptRuntime, "Sandbox", "Run",
			"nil compiled script")
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	for name, host := range bindings {
		if err := vm.Set(name, host); err != nil {
			return Value{}, pkgerrors.WrapInvalid(err, "Sandbox", "Run",
				fmt.Sprintf("binding %q", name))
		}
	}

	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result, err := vm.RunProgram(compiled.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			action := fmt.Sprintf("script %q exceeded %s", compiled.Name, s.timeout)
			if ctx.Err() != nil {
				action = fmt.Sprintf("script %q canceled: %v", compiled.Name, ctx.Err())
			}
			return Value{}, pkgerrors.WrapTransient(pkgerrors.ErrScriptTimeout, "Sandbox", "Run", action)
		}
		var thrown *goja.Exception
		if errors.As(err, &thrown) {
			return Value{}, pkgerrors.WrapInvalid(pkgerrors.ErrScriptRuntime, "Sandbox", "Run",
				fmt.Sprintf("script %q threw: %v", compiled.Name, thrown.Value()))
		}
		return Value{}, pkgerrors.WrapInvalid(pkgerrors.ErrScriptRuntime, "Sandbox", "Run",
			fmt.Sprintf("script %q: %v", compiled.Name, err))
	}

	return Value{raw: result}, nil
}
