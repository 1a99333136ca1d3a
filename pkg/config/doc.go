// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Configuration structs declare their variables through `env` struct tags:
//
//	type RelayConfig struct {
//		AllowNewDevice    bool   `env:"ALLOW_NEW_DEVICE" envDefault:"true"`
//		MaxBatchPushCount int    `env:"MAX_BATCH_PUSH_COUNT" envDefault:"0"`
//	}
//
//	var cfg RelayConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
//
// The default .env file is loaded at most once per process; a missing file
// is not an error.
package config
