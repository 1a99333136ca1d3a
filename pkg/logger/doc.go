// Package logger provides a small factory around log/slog plus attribute
// helpers shared across the relay's packages.
//
// Basic usage:
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithFormat(logger.FormatText),
//	)
//	logger.SetAsDefault(log)
//
//	log.Info("session registered", logger.DeviceKey(key))
package logger
