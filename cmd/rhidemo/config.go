//go:build !nogpu

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gogpu/rhi"
)

// config is read from RHI_* environment variables. A .env file in the
// working directory fills in variables that are not already set.
type config struct {
	backend rhi.BackendKind
	width   int
	height  int
	samples int
	vsync   rhi.VSyncMode
	debug   bool
}

func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := config{backend: rhi.BackendVulkan, width: 800, height: 600, samples: 1, vsync: rhi.VSyncOn}
	var err error
	if v := os.Getenv("RHI_BACKEND"); v != "" {
		if cfg.backend, err = rhi.ParseBackend(v); err != nil {
			return config{}, err
		}
	}
	if cfg.width, err = envInt("RHI_WIDTH", cfg.width); err != nil {
		return config{}, err
	}
	if cfg.height, err = envInt("RHI_HEIGHT", cfg.height); err != nil {
		return config{}, err
	}
	if cfg.samples, err = envInt("RHI_SAMPLES", cfg.samples); err != nil {
		return config{}, err
	}
	if cfg.vsync, err = parseVSync(os.Getenv("RHI_VSYNC")); err != nil {
		return config{}, err
	}
	if v := os.Getenv("RHI_DEBUG"); v != "" {
		if cfg.debug, err = strconv.ParseBool(v); err != nil {
			return config{}, fmt.Errorf("RHI_DEBUG: %w", err)
		}
	}
	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseVSync(s string) (rhi.VSyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "on", "1", "true":
		return rhi.VSyncOn, nil
	case "off", "0", "false":
		return rhi.VSyncOff, nil
	case "adaptive":
		return rhi.VSyncAdaptive, nil
	}
	return 0, fmt.Errorf("RHI_VSYNC: unknown mode %q", s)
}

func (c config) options() []rhi.Option {
	return []rhi.Option{
		rhi.WithSize(c.width, c.height),
		rhi.WithSamples(c.samples),
		rhi.WithVSync(c.vsync),
		rhi.WithDebug(c.debug),
	}
}
