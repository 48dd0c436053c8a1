// Package config holds the source CLI settings: defaults, then an optional
// TOML or JSON file, then command-line flags bound by the CLI.
package config
