// Package config loads and validates the TOML configuration consumed by the
// liteq CLI. The queue library itself takes validated values and never reads
// configuration files.
package config
