package retry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kind    string
		count   int
		want    Classification
	}{
		{"permission denied is permanent", errors.New("permission denied reading file"), "", 0, Permanent},
		{"file not found is permanent", errors.New("file-not-found: /tmp/x"), "", 0, Permanent},
		{"target-closed kind always transient", errors.New("boom"), "target-closed", 5, Transient},
		{"timeout substring is transient", errors.New("request timeout after 30s"), "", 5, Transient},
		{"unknown error retries under 3", errors.New("weird unclassified failure"), "", 1, Transient},
		{"unknown error stops at 3", errors.New("weird unclassified failure"), "", 3, Permanent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.err, c.kind, c.count))
		})
	}
}

func TestIsNavigationClass(t *testing.T) {
	assert.True(t, IsNavigationClass("navigate_to_url"))
	assert.True(t, IsNavigationClass("page.Goto"))
	assert.False(t, IsNavigationClass("take_screenshot"))
}
