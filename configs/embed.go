// Package configs embeds the configuration templates written by
// `codesnip config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Defaults (config.NewConfig)
//  2. User config ($XDG_CONFIG_HOME/codesnip/config.yaml)
//  3. Project config (.codesnip.yaml)
//  4. .env in the project directory
//  5. Environment variables (CODESNIP_*)
package configs

import _ "embed"

// UserConfigTemplate is written to the user config path by
// `codesnip config init --user`. It holds settings shared by every project.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .codesnip.yaml in the project root by
// `codesnip config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
