// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assist

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/FabInsight/services/query"
)

// Config is the service configuration, loaded from YAML with environment
// overrides.
type Config struct {
	// Port the HTTP server listens on.
	Port int `yaml:"port" validate:"required,min=1,max=65535"`

	// LogService configures the MES transaction log client.
	LogService LogServiceConfig `yaml:"log_service"`

	// DetailTTLMinutes is how long diagnosis details stay viewable per
	// session. 0 uses the default.
	DetailTTLMinutes int `yaml:"detail_ttl_minutes" validate:"min=0"`

	// Databases registers the SPC and MES databases per factory.
	Databases []query.DBConfig `yaml:"databases" validate:"dive"`
}

// LogServiceConfig configures the transaction log client.
type LogServiceConfig struct {
	// BaseURL is the API gateway root.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// TimeoutSeconds bounds each log service call.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=1,max=300"`
}

// DefaultConfig returns the production defaults. Databases must come from
// the config file; there is no sensible default DSN.
func DefaultConfig() Config {
	return Config{
		Port: 8080,
		LogService: LogServiceConfig{
			BaseURL:        "http://tncimweb.cminl.oa/Apigateway",
			TimeoutSeconds: 30,
		},
		DetailTTLMinutes: 30,
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result.
//
// Environment overrides:
//   - FABINSIGHT_PORT
//   - FABINSIGHT_LOG_SERVICE_URL
//
// Inputs:
//   - path: Config file path. Empty means defaults plus environment only.
//
// Outputs:
//   - Config: The effective configuration.
//   - error: Read, parse or validation failure.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("FABINSIGHT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("FABINSIGHT_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("FABINSIGHT_LOG_SERVICE_URL"); v != "" {
		cfg.LogService.BaseURL = v
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
