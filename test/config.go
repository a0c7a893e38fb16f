// Package test hosts the end-to-end scenarios running the full pipeline
// in-process: real badger storage, real workers, two live sessions.
package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config tunes the scenarios from the environment, so slow CI machines can
// stretch the convergence windows without code changes.
type Config struct {
	// TEST_EVENTUALLY_TIMEOUT bounds how long a scenario waits for the
	// pipeline to converge before failing.
	EventuallyTimeout time.Duration `envconfig:"TEST_EVENTUALLY_TIMEOUT" default:"5s"`
	// TEST_POLL_INTERVAL is the re-check period inside that window.
	PollInterval time.Duration `envconfig:"TEST_POLL_INTERVAL" default:"20ms"`
}

func LoadConfig() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	return config, err
}
