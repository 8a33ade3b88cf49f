// Package config loads ipcheck configuration.
//
// Values are merged in order: built-in defaults, the YAML config file
// ($XDG_CONFIG_HOME/ipcheck/config.yaml, or IPCHECK_CONFIG), environment
// variables, then CLI overrides. Secrets (API key, SMTP password) are only
// ever read from the environment and are never written back by Save.
package config
