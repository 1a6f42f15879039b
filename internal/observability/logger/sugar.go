package logger

import (
	"context"

	"go.uber.org/zap"
)

// S returns the singleton's SugaredLogger for printf-style logging.
//
//	logger.S().Infof("user %s created", userID)
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// SFrom extracts a SugaredLogger from the context.
func SFrom(ctx context.Context) *zap.SugaredLogger {
	return From(ctx).Sugar()
}
