package config

import "errors"

var (
	// ErrInvalidConfig is returned by Validate and wraps the failing key.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the YAML file or the environment.
	ErrLoadConfig = errors.New("load config failed")
)
