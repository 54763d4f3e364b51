// Package configs provides embedded configuration templates for eventscout.
//
// Templates are embedded at build time with go:embed so they are available
// in all distributions, source builds and binary releases alike.
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/eventscout/config.yaml)
//  3. Project config (.eventscout.yaml)
//  4. Environment variables (EVENTSCOUT_*)
//
// Secrets (API keys, DSNs) are never read from these files. They come
// from the process environment; the config files only name the variable
// to read.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `eventscout config init` at ~/.config/eventscout/config.yaml.
// Holds machine-specific settings: logging destinations, cache backend,
// telemetry environment.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created at .eventscout.yaml in the project root and meant to be version
// controlled: search tuning, trusted domains, quality weights, resilience
// overrides.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
