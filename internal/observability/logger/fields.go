package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

// RequestID tags an entry with the request id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method tags an entry with the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path tags an entry with the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status tags an entry with the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration tags an entry with the request duration.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Bytes tags an entry with the response size.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP tags an entry with the client IP.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// UserAgent tags an entry with the User-Agent header.
func UserAgent(v string) zap.Field {
	return zap.String("user_agent", v)
}

// Business fields.

// UserID tags an entry with the user id.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Provider tags an entry with an OAuth provider name.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// Email tags an entry with an email address (use carefully in prod).
func Email(v string) zap.Field {
	return zap.String("email", v)
}

// System fields.

// Component tags an entry with the component/module name.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op tags an entry with the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer tags an entry with the layer (handler, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err tags an entry with an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Generic fields.

// Count tags an entry with a count.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key tags an entry with a generic key.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Any wraps zap.Any.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String wraps zap.String.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int wraps zap.Int.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool wraps zap.Bool.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
