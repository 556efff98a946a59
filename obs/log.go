package obs

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared logger used for audit lines.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

type ctxKey string

const (
	actorIDKey   ctxKey = "obs_actor_id"
	actorNameKey ctxKey = "obs_actor_name"
	requestIDKey ctxKey = "obs_request_id"
)

// WithActor records who is performing the request.
func WithActor(ctx context.Context, id, username string) context.Context {
	if id != "" {
		ctx = context.WithValue(ctx, actorIDKey, id)
	}
	if username != "" {
		ctx = context.WithValue(ctx, actorNameKey, username)
	}
	return ctx
}

// ActorFromContext returns the actor set by WithActor.
func ActorFromContext(ctx context.Context) (id, username string) {
	if ctx == nil {
		return "", ""
	}
	id, _ = ctx.Value(actorIDKey).(string)
	username, _ = ctx.Value(actorNameKey).(string)
	return id, username
}

// WithRequestID attaches a request identifier for audit lines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// LogEvent writes one JSON audit line enriched with actor and request id.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if ctx != nil {
		if rid, ok := ctx.Value(requestIDKey).(string); ok {
			entry["request_id"] = rid
		}
	}
	if id, name := ActorFromContext(ctx); id != "" || name != "" {
		entry["actor_id"] = id
		entry["actor"] = name
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	entry["fields"] = copyFields

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	Logger().Println(string(data))
	return nil
}
