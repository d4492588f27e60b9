package main

import (
	"context"
	"fmt"
	"os"

	"studyai-backend/internal/config"
	"studyai-backend/internal/services"
)

func main() {
	if err := newRootCmd(modelFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// modelFromEnv reads the same environment as the server. config.Load panics on
// a missing API key, which the CLI reports as an ordinary error.
func modelFromEnv(ctx context.Context) (model services.Model, cfg *config.Config, closeFn func() error, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load config: %v", r)
		}
	}()

	cfg = config.Load()
	model, closeFn, err = services.NewModelFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return model, cfg, closeFn, nil
}
