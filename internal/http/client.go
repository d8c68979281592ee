// Package http builds the shared HTTP client used by the catalog, history
// and chatbot clients.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/faishion/tryon-client/internal/config"
)

// NewClient returns the HTTP client shared by all API clients.
//
// It starts from ConfigureHTTPClient and, when the transport is a plain
// *nethttp.Transport, enables HTTP/2. HTTP/2 is turned off when a proxy is
// active or DISABLE_HTTP2=true is set; FORCE_HTTP2=true overrides the proxy
// check. A nil cfg yields a direct client.
func NewClient(cfg *config.Config) (*nethttp.Client, error) {
	if cfg == nil {
		return &nethttp.Client{Transport: newTransport()}, nil
	}

	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	// NTLM wraps the transport in a negotiator; leave it as built.
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	client.Transport = tr
	return client, nil
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return cfg.ProxyHost != ""
	}
}
