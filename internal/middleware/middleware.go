package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Middleware wraps the transport used by the API client.
type Middleware func(http.RoundTripper) http.RoundTripper

type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

const RequestIDHeader = "X-Request-ID"

// Chain wraps rt so that the first middleware is the outermost.
func Chain(rt http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		rt = middlewares[i](rt)
	}
	return rt
}

func isSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// CSRFMiddleware copies the CSRF cookie, already attached to the request by
// the client's cookie jar, into headerName. Unsafe requests over https also
// get a same-origin Referer, which Django checks.
func CSRFMiddleware(cookieName, headerName string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			cookie, err := r.Cookie(cookieName)
			needsReferer := !isSafe(r.Method) && r.URL.Scheme == "https" && r.Header.Get("Referer") == ""
			if err != nil && !needsReferer {
				return next.RoundTrip(r)
			}

			r = r.Clone(r.Context())
			if err == nil {
				r.Header.Set(headerName, cookie.Value)
			}
			if needsReferer {
				r.Header.Set("Referer", r.URL.Scheme+"://"+r.URL.Host+"/")
			}
			return next.RoundTrip(r)
		})
	}
}

func RequestIDMiddleware(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(RequestIDHeader) != "" {
			return next.RoundTrip(r)
		}
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, uuid.New().String())
		return next.RoundTrip(r)
	})
}

func UserAgentMiddleware(userAgent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if userAgent == "" || r.Header.Get("User-Agent") != "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set("User-Agent", userAgent)
			return next.RoundTrip(r)
		})
	}
}

func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			attrs := []any{
				"method", r.Method,
				"url", r.URL.Redacted(),
				"request_id", r.Header.Get(RequestIDHeader),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Debug("api request failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.Debug("api request", append(attrs, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}
