package authtransport

import (
	"context"
	stdhttp "net/http"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/ichigozero/ondemand/authsvc"
)

type Authenticator interface {
	Authenticate(h stdhttp.Header) error
}

// AuthenticateRequest checks the request headers with a before dec reads
// the path or body. Rejected requests never reach dec or the endpoint.
func AuthenticateRequest(a Authenticator, dec httptransport.DecodeRequestFunc) httptransport.DecodeRequestFunc {
	return func(ctx context.Context, r *stdhttp.Request) (interface{}, error) {
		if err := a.Authenticate(r.Header); err != nil {
			return nil, err
		}
		return dec(ctx, r)
	}
}

// ContextToHTTP sets the Authorization header of an outgoing request from
// the token stored under authsvc.TokenContextKey.
func ContextToHTTP() httptransport.RequestFunc {
	return func(ctx context.Context, r *stdhttp.Request) context.Context {
		token, ok := ctx.Value(authsvc.TokenContextKey).(string)
		if ok {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return ctx
	}
}
