package log

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// AddContext permanently attaches context to the logger for a VOD ID. Any
// future logging for this VOD ID will include this context.
func AddContext(vodID string, keyvals ...interface{}) {
	logger := kitlog.With(getLogger(vodID), redactKeyvals(keyvals...)...)

	if err := loggerCache.Replace(vodID, logger, defaultLoggerCacheExpiry); err != nil {
		_ = logger.Log("msg", "error replacing logger in cache: "+err.Error())
	}
}

func Log(vodID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(vodID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// LogNoVodID logs in situations where there's no VOD ID to attach context to
// (e.g. the dispatcher's idle poll). Should be used sparingly.
func LogNoVodID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(vodID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(vodID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", err.Error())
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

func getLogger(vodID string) kitlog.Logger {
	logger, found := loggerCache.Get(vodID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "vod_id", vodID)
	if err := loggerCache.Add(vodID, newLogger, defaultLoggerCacheExpiry); err != nil {
		_ = newLogger.Log("msg", "error adding logger to cache", "vod_id", vodID, "err", err.Error())
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	newLogger := kitlog.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	return kitlog.With(newLogger, "ts", kitlog.DefaultTimestampUTC)
}

func redactKeyvals(keyvals ...interface{}) []interface{} {
	var res []interface{}
	for i := range keyvals {
		if i%2 == 1 {
			k, v := keyvals[i-1], keyvals[i]
			res = append(res, k)
			switch s := v.(type) {
			case string:
				res = append(res, RedactURL(s))
			case url.URL:
				res = append(res, s.Redacted())
			case *url.URL:
				if s != nil {
					res = append(res, s.Redacted())
				}
			default:
				res = append(res, v)
			}
		}
	}
	return res
}

func RedactURL(str string) string {
	strLower := strings.ToLower(str)
	if !strings.HasPrefix(strLower, "http") && !strings.HasPrefix(strLower, "s3") {
		return str
	}

	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}
