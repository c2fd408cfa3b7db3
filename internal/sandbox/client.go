package sandbox

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// zapLeveledLogger routes retryablehttp diagnostics into zap.
type zapLeveledLogger struct {
	log *zap.SugaredLogger
}

func (l zapLeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, keysAndValues...)
}

func (l zapLeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l zapLeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l zapLeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warnw(msg, keysAndValues...)
}

// newHTTPClient builds the per-node session. Poll requests go through the
// retrying client, submissions use the embedded http.Client directly so a
// solution is never posted twice.
func newHTTPClient(cfg NodeConfig, log *zap.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.RequestTimeout
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = zapLeveledLogger{log: log.Sugar()}
	return client
}
