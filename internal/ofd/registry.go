package ofd

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/abeknur/ofd-check/internal/receipt"
)

// Handler fetches and parses one operator's check format. Exactly one
// completion per call: a Receipt or a classified error, never both,
// never a partial Receipt.
type Handler interface {
	FetchCheck(ctx context.Context, u *url.URL) (*receipt.Receipt, error)
}

// Registry maps check hosts to operator handlers. Build it once at
// startup and treat it as immutable afterwards; it is the caller's to
// own and pass around, there is no package-level instance.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry wires the three known operators to their
// production hosts.
func NewDefaultRegistry(timeout time.Duration) *Registry {
	r := NewRegistry()
	r.Register("consumer.oofd.kz", NewKazakhtelecom(timeout))
	r.Register("consumer.kofd.kz", NewJusan(timeout))
	transtelecom := NewTranstelecom(timeout)
	r.Register("ofd1.kz", transtelecom)
	r.Register("87.255.215.96", transtelecom)
	return r
}

// Register binds a host to a handler. Not safe to call concurrently
// with Fetch; registration happens once at startup.
func (r *Registry) Register(host string, h Handler) {
	r.handlers[host] = h
}

// HandlerFor returns the handler registered for a host.
func (r *Registry) HandlerFor(host string) (Handler, bool) {
	h, ok := r.handlers[host]
	return h, ok
}

// Fetch routes a scanned check URL to its operator's handler and runs
// the fetch-then-parse pipeline. Plain http URLs are upgraded to https
// before host inspection, so both spellings route identically.
func (r *Registry) Fetch(ctx context.Context, rawURL string) (*receipt.Receipt, error) {
	if strings.HasPrefix(rawURL, "http://") {
		rawURL = "https://" + strings.TrimPrefix(rawURL, "http://")
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, routingErrf("invalid check URL: %q", rawURL)
	}

	handler, ok := r.HandlerFor(u.Hostname())
	if !ok {
		return nil, routingErrf("unsupported operator: %s", u.Hostname())
	}
	return handler.FetchCheck(ctx, u)
}
