// Package config loads process configuration from the environment into
// tagged structs. A .env file in the working directory is read once, before
// the first load; each configuration type is parsed once and cached.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrNilPointer is returned when a nil pointer is provided to Load.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
	// ErrLoadingEnvFile is returned when an explicitly requested .env file cannot be read.
	ErrLoadingEnvFile = errors.New("failed to load env file")
)

type cache struct {
	mu     sync.Mutex
	values map[string]any
}

var (
	globalCache = &cache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// LoadEnv reads the given .env files into the process environment without
// overriding variables that are already set.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}

	return nil
}

// Load parses the environment into v using `env` and `envDefault` struct
// tags. The first successful load of a type is cached and returned by later
// calls; failed loads are not cached.
//
// Example:
//
//	type LogConfig struct {
//		JSON  bool   `env:"LOG_JSON"  envDefault:"false"`
//		Level string `env:"LOG_LEVEL" envDefault:"info"`
//	}
//
//	var cfg LogConfig
//	err := config.Load(&cfg)
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The default .env file is optional.
		_ = godotenv.Load()
	})

	if v == nil {
		return ErrNilPointer
	}

	key := typeKey[T]()

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T) //nolint:forcetypeassert // keyed by T

		return nil
	}

	var parsed T

	err := env.Parse(&parsed)
	if err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	globalCache.values[key] = parsed
	*v = parsed

	return nil
}

// MustLoad works like Load but panics if loading fails.
func MustLoad[T any](v *T) {
	err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reload discards any cached value of T and parses the environment again.
func Reload[T any](v *T) error {
	globalCache.mu.Lock()
	delete(globalCache.values, typeKey[T]())
	globalCache.mu.Unlock()

	return Load(v)
}

// ResetCache forgets every cached configuration.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	globalCache.values = make(map[string]any)
}

func typeKey[T any]() string {
	t := reflect.TypeFor[T]()

	return t.PkgPath() + "." + t.String()
}
