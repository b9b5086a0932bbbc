// Package config resolves the provider API key from an ordered list of
// sources. The first source that yields a non-empty value wins; sources that
// come up empty are skipped, sources that fail abort resolution.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// KeySource yields an API key candidate. Returning an empty string with a nil
// error means "nothing here, try the next source".
type KeySource interface {
	Resolve(ctx context.Context) (string, error)
}

// ParamGetter is the parameter-store dependency of ParamSource.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// EnvSource reads the key from a process environment variable.
type EnvSource struct {
	Name string
}

func (s EnvSource) Resolve(_ context.Context) (string, error) {
	if s.Name == "" {
		return "", errors.New("config: env source variable name is empty")
	}
	return strings.TrimSpace(os.Getenv(s.Name)), nil
}

// ParamSource reads the key from an external parameter store.
type ParamSource struct {
	Params ParamGetter
	Name   string
}

func (s ParamSource) Resolve(ctx context.Context) (string, error) {
	if s.Params == nil {
		return "", errors.New("config: param source getter is nil")
	}
	if strings.TrimSpace(s.Name) == "" {
		return "", errors.New("config: param source name is empty")
	}
	v, err := s.Params.GetParameter(ctx, s.Name)
	if err != nil {
		return "", fmt.Errorf("config: param source: %w", err)
	}
	return strings.TrimSpace(v), nil
}

// StaticSource holds a key supplied directly by the caller, e.g. one the
// frontend collected interactively.
type StaticSource struct {
	Value string
}

func (s StaticSource) Resolve(_ context.Context) (string, error) {
	return strings.TrimSpace(s.Value), nil
}

// Chain tries its sources in order and returns the first non-empty value.
type Chain struct {
	sources []KeySource
}

// NewChain builds a Chain over the given sources.
func NewChain(sources ...KeySource) (*Chain, error) {
	if len(sources) == 0 {
		return nil, errors.New("config: chain needs at least one key source")
	}
	for i, s := range sources {
		if s == nil {
			return nil, fmt.Errorf("config: key source %d is nil", i)
		}
	}
	return &Chain{sources: sources}, nil
}

// Resolve walks the chain. It fails when a source errors, or when every
// source comes up empty.
func (c *Chain) Resolve(ctx context.Context) (string, error) {
	for _, s := range c.sources {
		v, err := s.Resolve(ctx)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return "", errors.New("config: no key source produced a value")
}
