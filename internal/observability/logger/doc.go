// Package logger provides a singleton Zap logger with context-based scoping.
//
// A single global instance is initialized once with Init(). Each request can
// carry its own scoped logger (request_id, user_id, ...) through the context
// without rebuilding the core. "dev" uses a colored console encoder, "prod"
// uses JSON.
//
// Initialization (once, in main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.Env,       // "dev" or "prod"
//	    Level: cfg.LogLevel,  // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// In handlers/services (with context):
//
//	log := logger.From(ctx)
//	log.Info("processing request", logger.UserID(userID))
//
// Without context (falls back to the singleton):
//
//	logger.L().Info("application started")
package logger
