package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

type loader struct {
	files   []string
	environ map[string]string
	prefix  string
}

// Option configures Load.
type Option func(*loader)

// WithEnvFiles reads the given dotenv files instead of ".env". Missing
// files are an error. Earlier files win over later ones and the process
// environment wins over all of them.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) {
		l.files = files
	}
}

// WithEnvironment replaces the process environment as the source of values.
// Dotenv files are still applied underneath it.
func WithEnvironment(vars map[string]string) Option {
	return func(l *loader) {
		l.environ = vars
	}
}

// WithPrefix prepends prefix to every variable name looked up.
func WithPrefix(prefix string) Option {
	return func(l *loader) {
		l.prefix = prefix
	}
}

// Load builds a T from dotenv files and the environment using caarlos0/env
// struct tags. Every call parses afresh and returns a value the caller owns;
// build configuration once at startup and pass it down explicitly.
//
// Example:
//
//	type DatabaseConfig struct {
//		URL      string `env:"PG_CONN_URL,required"`
//		MaxConns int32  `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//	}
//
//	cfg, err := config.Load[DatabaseConfig]()
func Load[T any](opts ...Option) (T, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	vars, err := l.environment()
	if err != nil {
		var zero T
		return zero, err
	}

	v, err := env.ParseAsWithOptions[T](env.Options{
		Environment: vars,
		Prefix:      l.prefix,
	})
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Use it for configuration the process cannot start without.
func MustLoad[T any](opts ...Option) T {
	v, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
	return v
}

func (l *loader) environment() (map[string]string, error) {
	merged := make(map[string]string)

	files, optional := l.files, false
	if files == nil {
		files, optional = []string{defaultEnvFile}, true
	}

	// Apply in reverse so earlier files take precedence.
	for i := len(files) - 1; i >= 0; i-- {
		vals, err := godotenv.Read(files[i])
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w %s: %w", ErrEnvFile, files[i], err)
		}
		for k, v := range vals {
			merged[k] = v
		}
	}

	if l.environ != nil {
		for k, v := range l.environ {
			merged[k] = v
		}
		return merged, nil
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	return merged, nil
}
