package contentcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligible_CoreExtensionAlwaysAllowed(t *testing.T) {
	assert.True(t, Eligible(true, "https://cdn.example.com/app.css", nil, false, ""))
	assert.True(t, Eligible(true, "https://cdn.example.com/app.js", nil, false, ""))
}

func TestEligible_DisabledRejectsEverything(t *testing.T) {
	assert.False(t, Eligible(false, "https://cdn.example.com/app.css", nil, false, ""))
}

func TestEligible_NeverCachePathFragments(t *testing.T) {
	assert.False(t, Eligible(true, "https://example.com/api/graphql?x=1.css", nil, false, ""))
	assert.False(t, Eligible(true, "https://example.com/auth/login.js", nil, false, ""))
	assert.False(t, Eligible(true, "https://example.com/admin/panel.png", nil, false, ""))
}

func TestEligible_DynamicQueryKeysRejected(t *testing.T) {
	assert.False(t, Eligible(true, "https://example.com/img.png?token=abc", nil, false, ""))
	assert.False(t, Eligible(true, "https://example.com/img.png?session=abc", nil, false, ""))
}

func TestEligible_PriorityDomainOverridesExtension(t *testing.T) {
	assert.True(t, Eligible(true, "https://trusted.example.com/whatever.xyz", []string{"trusted.example.com"}, false, ""))
}

func TestEligible_ResourceTypeClassification(t *testing.T) {
	assert.True(t, Eligible(true, "https://example.com/resource", nil, false, ResourceImage))
	assert.False(t, Eligible(true, "https://example.com/resource", nil, false, ResourceDocument))
}

func TestEligible_AllContentModeExpandsExtensions(t *testing.T) {
	assert.False(t, Eligible(true, "https://example.com/page.html", nil, false, ""))
	assert.True(t, Eligible(true, "https://example.com/page.html", nil, true, ""))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ResourceStylesheet, Classify("https://example.com/a.css"))
	assert.Equal(t, ResourceImage, Classify("https://example.com/a.png?x=1"))
	assert.Equal(t, ResourceType(""), Classify("https://example.com/a.unknown"))
}
