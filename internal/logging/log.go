package logging

import (
	"log/slog"
	"os"
)

// New builds the process-wide structured logger. JSON in prod so log
// aggregation can parse it, plain text everywhere else.
func New() *slog.Logger {
	var h slog.Handler
	if os.Getenv("APP_ENV") == "prod" {
		h = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		h = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(h)
}
