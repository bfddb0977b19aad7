package mid

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/auriumchain/node/business/web/errs"
	"github.com/auriumchain/node/foundation/blockchain/guard"
	"github.com/auriumchain/node/foundation/web"
)

// Guard screens a request with the abuse guard before the handler sees it.
// The request counts as one message of its declared size from the remote
// host and the body is capped at the guard's message size. Requests that
// carry a block are also charged against the block limit.
func Guard(g *guard.Guard, carriesBlock bool) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			addr := remoteHost(r)

			if err := g.AllowMessage(addr, max(int(r.ContentLength), 0)); err != nil {
				return errs.NewTrusted(err, guardStatus(err))
			}

			if carriesBlock {
				if err := g.AllowBlock(addr); err != nil {
					return errs.NewTrusted(err, guardStatus(err))
				}
			}

			r.Body = http.MaxBytesReader(w, r.Body, int64(g.Config().MaxMessageBytes))

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}

// guardStatus maps a guard refusal to the response status.
func guardStatus(err error) int {
	switch {
	case errors.Is(err, guard.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, guard.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusTooManyRequests
	}
}

// remoteHost returns the host part of the remote address so a client is
// tracked across ports.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
