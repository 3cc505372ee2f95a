// Package urlrewrite rewrites internal/staging hostnames to their canonical
// public equivalents, used both before navigation and to form canonical
// content-cache keys.
package urlrewrite

import "net/url"

// Rewriter transforms a URL's host per a static table, identity for unknown
// hosts.
type Rewriter interface {
	Transform(rawURL string) string
	// Reverse undoes Transform, used by the content cache to recover a
	// canonical key from an internal-host URL it intercepted.
	Reverse(rawURL string) string
}

// TableRewriter is a table-driven host-rewrite implementation.
type TableRewriter struct {
	forward map[string]string
	reverse map[string]string
}

// NewTableRewriter builds a Rewriter from a from->to host map.
func NewTableRewriter(hostMap map[string]string) *TableRewriter {
	reverse := make(map[string]string, len(hostMap))
	for from, to := range hostMap {
		reverse[to] = from
	}
	return &TableRewriter{forward: hostMap, reverse: reverse}
}

func (r *TableRewriter) Transform(rawURL string) string {
	return rewriteHost(rawURL, r.forward)
}

func (r *TableRewriter) Reverse(rawURL string) string {
	return rewriteHost(rawURL, r.reverse)
}

func rewriteHost(rawURL string, table map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if to, ok := table[u.Hostname()]; ok {
		if port := u.Port(); port != "" {
			u.Host = to + ":" + port
		} else {
			u.Host = to
		}
	}
	return u.String()
}
