// Package configs provides the embedded configuration template.
//
// The template is embedded at build time so that `archivist config init`
// works from source builds and binary releases alike. Loading order is
// described in internal/config (Load).
package configs

import _ "embed"

// ConfigTemplate is the commented configuration written by
// `archivist config init`, either as .archivist.yaml in the current
// directory or as the user config (--user).
//
//go:embed archivist.example.yaml
var ConfigTemplate string
