package urlrewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableRewriter_TransformsKnownHost(t *testing.T) {
	r := NewTableRewriter(map[string]string{"internal.local": "public.example.com"})
	assert.Equal(t, "https://public.example.com/page", r.Transform("https://internal.local/page"))
}

func TestTableRewriter_IdentityForUnknownHost(t *testing.T) {
	r := NewTableRewriter(map[string]string{"internal.local": "public.example.com"})
	assert.Equal(t, "https://other.example.com/page", r.Transform("https://other.example.com/page"))
}

func TestTableRewriter_ReverseUndoesTransform(t *testing.T) {
	r := NewTableRewriter(map[string]string{"internal.local": "public.example.com"})
	rewritten := r.Transform("https://internal.local/page")
	assert.Equal(t, "https://internal.local/page", r.Reverse(rewritten))
}

func TestTableRewriter_PreservesPort(t *testing.T) {
	r := NewTableRewriter(map[string]string{"internal.local": "public.example.com"})
	assert.Equal(t, "https://public.example.com:8443/page", r.Transform("https://internal.local:8443/page"))
}
