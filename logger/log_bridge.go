package logger

import (
	"log"
	"strings"
)

// adminLogWriter implements io.Writer to route the admin/introspection
// HTTP server's error log (§4 vfdapi) through our own logger instead of
// stderr.
type adminLogWriter struct{}

func (lw *adminLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(message, "TLS") || strings.Contains(message, "tls"):
		Warn("admin API: %s", message)
	case strings.Contains(message, "error") || strings.Contains(message, "Error"):
		Error("admin API: %s", message)
	default:
		Info("admin API: %s", message)
	}

	return len(p), nil
}

// InitLogBridge redirects standard library log output to our logger, for
// any third-party dependency that still logs through log.Default.
func InitLogBridge() {
	writer := &adminLogWriter{}
	log.SetOutput(writer)
	log.SetFlags(0)
	Debug("standard library log output redirected to the VFD SWMR logger")
}

// SetHTTPServerErrorLog returns a logger for vfdapi.Server's http.Server.ErrorLog.
func SetHTTPServerErrorLog() *log.Logger {
	writer := &adminLogWriter{}
	return log.New(writer, "", 0)
}