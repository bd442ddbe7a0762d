package testutil

import (
	"net/http"

	id "skillproof/pkg/domain"
	"skillproof/pkg/requestcontext"
)

// WithCaller attaches caller the way RequireCaller would. An invalid
// principal leaves the request anonymous.
func WithCaller(req *http.Request, caller string) *http.Request {
	p, err := id.ParsePrincipal(caller)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), p))
}
