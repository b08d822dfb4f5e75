package httpserver

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/model"
)

// Header names used for request correlation.
const (
	HeaderRequestID  = "X-Request-Id"
	HeaderCloudTrace = "X-Cloud-Trace-Context"
	HeaderAPIKey     = "X-API-Key"
)

// RequestContext correlates log lines of one request.
type RequestContext struct {
	RequestID    string
	TraceID      string
	SpanID       string
	TraceSampled bool
}

// Fields returns the zap fields for rc. SpanID is omitted when empty.
func (rc RequestContext) Fields() []zap.Field {
	f := []zap.Field{zap.String("request_id", rc.RequestID), zap.String("trace_id", rc.TraceID)}
	if rc.SpanID != "" {
		f = append(f, zap.String("span_id", rc.SpanID))
	}
	return f
}

// parseCloudTrace splits "TRACE/SPAN;o=1".
func parseCloudTrace(h string) (trace, span string, sampled bool) {
	if h == "" {
		return "", "", false
	}
	head, opts, _ := strings.Cut(h, ";")
	trace, span, _ = strings.Cut(head, "/")
	return trace, span, strings.Contains(opts, "o=1")
}

// newRequestContext honors the incoming request id and trace header and fills
// the gaps with generated ids.
func newRequestContext(requestID, cloudTrace string) RequestContext {
	trace, span, sampled := parseCloudTrace(cloudTrace)
	if requestID == "" {
		requestID = newHexID()[:8]
	}
	if trace == "" {
		trace = newHexID()
	}
	return RequestContext{RequestID: requestID, TraceID: trace, SpanID: span, TraceSampled: sampled}
}

func newHexID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "00000000000000000000000000000000"
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

type ctxKey string

const (
	reqCtxKey ctxKey = "clx.request"
	botKey    ctxKey = "clx.bot"
)

// WithRequestContext stores rc in ctx.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, reqCtxKey, rc)
}

// RequestContextFrom fetches the request context, if any.
func RequestContextFrom(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(reqCtxKey).(RequestContext)
	return rc, ok
}

// WithBot stores the authenticated bot in ctx.
func WithBot(ctx context.Context, b *model.BotAccount) context.Context {
	return context.WithValue(ctx, botKey, b)
}

// BotFromCtx fetches the authenticated bot.
func BotFromCtx(ctx context.Context) (*model.BotAccount, bool) {
	b, ok := ctx.Value(botKey).(*model.BotAccount)
	return b, ok && b != nil
}
