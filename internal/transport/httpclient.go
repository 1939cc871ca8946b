package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient возвращает http.Client с таймаутом, трассировкой otelhttp
// и базовым транспортом. Query-параметры из secretParams не попадают в спаны:
// они снимаются до otelhttp и возвращаются перед отправкой.
func NewHTTPClient(timeout time.Duration, secretParams ...string) *http.Client {
	var rt http.RoundTripper = newBaseTransport()
	rt = &restoreParams{next: rt}
	rt = otelhttp.NewTransport(rt,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Host)
		}),
	)
	rt = &redactParams{names: secretParams, next: rt}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type stashKey struct{}

// redactParams убирает секретные параметры из URL и кладёт их в контекст запроса.
type redactParams struct {
	names []string
	next  http.RoundTripper
}

func (t *redactParams) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.names) == 0 || req.URL == nil || req.URL.RawQuery == "" {
		return t.next.RoundTrip(req)
	}
	q := req.URL.Query()
	stash := url.Values{}
	for _, name := range t.names {
		if vs, ok := q[name]; ok {
			stash[name] = vs
			q.Del(name)
		}
	}
	if len(stash) == 0 {
		return t.next.RoundTrip(req)
	}
	r2 := req.Clone(context.WithValue(req.Context(), stashKey{}, stash))
	r2.URL.RawQuery = q.Encode()
	return t.next.RoundTrip(r2)
}

// restoreParams возвращает снятые параметры в URL перед отправкой.
type restoreParams struct {
	next http.RoundTripper
}

func (t *restoreParams) RoundTrip(req *http.Request) (*http.Response, error) {
	stash, _ := req.Context().Value(stashKey{}).(url.Values)
	if len(stash) == 0 {
		return t.next.RoundTrip(req)
	}
	r2 := req.Clone(req.Context())
	q := r2.URL.Query()
	for k, vs := range stash {
		q[k] = vs
	}
	r2.URL.RawQuery = q.Encode()
	return t.next.RoundTrip(r2)
}
