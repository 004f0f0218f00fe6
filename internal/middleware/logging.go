package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. Use the *Context variants so
// request, user and trace ids are attached.
var Logger *slog.Logger

type logField string

const (
	requestIDField logField = "request_id"
	userIDField    logField = "user_id"
	traceIDField   logField = "trace_id"
)

var logFields = []logField{requestIDField, userIDField, traceIDField}

// fieldHandler copies known context values onto every record.
type fieldHandler struct {
	slog.Handler
}

func (h fieldHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range logFields {
		if v, ok := ctx.Value(f).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(f), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h fieldHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fieldHandler{h.Handler.WithAttrs(attrs)}
}

func (h fieldHandler) WithGroup(name string) slog.Handler {
	return fieldHandler{h.Handler.WithGroup(name)}
}

// NewLogger writes JSON in production and text elsewhere.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(level, "debug") {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler
	if env == "production" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(fieldHandler{h})
}

func init() {
	Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	slog.SetDefault(Logger)
}

// WithUserID returns ctx tagged with the acting user for log records.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDField, userID)
}

// ContextMiddleware moves the request and trace ids from fiber locals onto the
// user context so service code logs them too. The user id is added later by
// the auth middleware.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, requestIDField, rid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, traceIDField, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			"status", status,
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"latency", time.Since(start),
		}
		if ua := c.Get(fiber.HeaderUserAgent); ua != "" {
			attrs = append(attrs, "user_agent", ua)
		}

		level := slog.LevelInfo
		msg := "request processed"
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		if err != nil || status >= fiber.StatusInternalServerError {
			level = slog.LevelError
			msg = "request failed"
		}
		Logger.Log(c.UserContext(), level, msg, attrs...)
		return err
	}
}
