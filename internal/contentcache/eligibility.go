package contentcache

import (
	"net/url"
	"strings"
)

// ResourceType mirrors the route resource-type classification the pipeline's
// page-level interceptor sees (stylesheet/script/font/image/...).
type ResourceType string

const (
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceScript      ResourceType = "script"
	ResourceFont        ResourceType = "font"
	ResourceImage       ResourceType = "image"
	ResourceMedia       ResourceType = "media"
	ResourceDocument    ResourceType = "document"
	ResourceOther       ResourceType = "other"
)

var coreExtensions = map[string]ResourceType{
	".css":  ResourceStylesheet,
	".js":   ResourceScript,
	".mjs":  ResourceScript,
	".woff": ResourceFont, ".woff2": ResourceFont, ".ttf": ResourceFont, ".otf": ResourceFont, ".eot": ResourceFont,
	".png": ResourceImage, ".jpg": ResourceImage, ".jpeg": ResourceImage, ".gif": ResourceImage, ".webp": ResourceImage, ".svg": ResourceImage, ".ico": ResourceImage,
	".mp4": ResourceMedia, ".webm": ResourceMedia, ".ogg": ResourceMedia, ".mp3": ResourceMedia, ".wav": ResourceMedia,
}

var allContentExtensions = map[string]ResourceType{
	".html": ResourceDocument, ".pdf": ResourceDocument, ".json": ResourceDocument, ".xml": ResourceDocument,
	".csv": ResourceOther, ".tsv": ResourceOther,
	".zip": ResourceOther, ".gz": ResourceOther, ".tar": ResourceOther,
	".wasm": ResourceOther, ".map": ResourceOther,
}

var neverCachePathFragments = []string{
	"api/graphql", "auth/login", "auth/logout", "ws/websocket", "analytics/track", "admin/",
}

var dynamicQueryKeys = map[string]bool{
	"timestamp": true, "time": true, "now": true, "rand": true, "token": true, "session": true,
}

// eligibleResourceTypes are the route resource-type classes the spec
// considers cacheable on their own, regardless of extension.
var eligibleResourceTypes = map[ResourceType]bool{
	ResourceStylesheet: true,
	ResourceScript:     true,
	ResourceFont:       true,
	ResourceImage:      true,
}

// Classify returns the resource type implied by rawURL's extension, or ""
// if the extension is not recognized in either table.
func Classify(rawURL string) ResourceType {
	ext := extensionOf(rawURL)
	if t, ok := coreExtensions[ext]; ok {
		return t
	}
	if t, ok := allContentExtensions[ext]; ok {
		return t
	}
	return ""
}

func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

// Eligible reports whether rawURL should be served from the content cache
// (spec §4.5 eligibility rules), given whether caching is enabled, the
// priority-domain allowlist, all-content mode, and the route's own
// resource-type classification (may be "" if unknown).
func Eligible(enabled bool, rawURL string, priorityDomains []string, allContentMode bool, routeType ResourceType) bool {
	if !enabled {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	lowerPath := strings.ToLower(u.Path)
	for _, frag := range neverCachePathFragments {
		if strings.Contains(lowerPath, frag) {
			return false
		}
	}

	for key := range u.Query() {
		if dynamicQueryKeys[strings.ToLower(key)] {
			return false
		}
	}

	if isPriorityDomain(u.Hostname(), priorityDomains) {
		return true
	}

	ext := extensionOf(rawURL)
	if _, ok := coreExtensions[ext]; ok {
		return true
	}
	if allContentMode {
		if _, ok := allContentExtensions[ext]; ok {
			return true
		}
	}

	if eligibleResourceTypes[routeType] {
		return true
	}

	return false
}

func isPriorityDomain(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
