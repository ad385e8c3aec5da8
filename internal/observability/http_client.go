package observability

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// TraceTargets returns the hosts of the given service URLs, the form Sentry matches
// outgoing requests against. Empty and unparsable URLs are skipped.
func TraceTargets(serviceURLs ...string) []string {
	var hosts []string
	for _, raw := range serviceURLs {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if !slices.Contains(hosts, host) {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// NewHTTPClient returns a client that records a span for every outbound call and
// propagates the trace to the hosts of serviceURLs, the gateway or email API it talks to.
func NewHTTPClient(timeout time.Duration, serviceURLs ...string) *http.Client {
	client := &http.Client{
		Transport: sentryhttpclient.NewSentryRoundTripper(
			http.DefaultTransport,
			sentryhttpclient.WithTracePropagationTargets(TraceTargets(serviceURLs...)),
		),
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
