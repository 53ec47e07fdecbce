package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockrecon/internal/core"
	mw "github.com/JonMunkholm/stockrecon/internal/web/middleware"
)

// actorHeader names the user acting on an owner's stock. It is set by the
// authenticating proxy in front of this service.
const actorHeader = "X-User-ID"

// WithRequestMetadata adds the client IP, User-Agent and actor to ctx for
// audit entries.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, mw.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
		ctx = core.ContextWithActor(ctx, actor)
	}
	return ctx
}

// withSyncActor records a sync as performed by "sync:<source>".
func withSyncActor(ctx context.Context, source string) context.Context {
	return core.ContextWithActor(ctx, "sync:"+source)
}
