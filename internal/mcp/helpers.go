package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"universal-browser-mcp/internal/logging"

	"github.com/sirupsen/logrus"
)

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// requireStringArg returns a non-empty string argument or ErrMissingArgument.
func requireStringArg(args map[string]interface{}, key string) (string, error) {
	val := getStringArg(args, key)
	if val == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return val, nil
}

// hasArg reports whether key is present and non-null. An empty string counts.
func hasArg(args map[string]interface{}, key string) bool {
	val, ok := args[key]
	return ok && val != nil
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
		return fallback
	default:
		return fallback
	}
}

type loggerKey struct{}

func withLogger(ctx context.Context, log logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// loggerFrom returns the per-call logger installed by the dispatcher.
func loggerFrom(ctx context.Context) logrus.FieldLogger {
	if log, ok := ctx.Value(loggerKey{}).(logrus.FieldLogger); ok {
		return log
	}
	return logging.NullLogger()
}
