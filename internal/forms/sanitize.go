package forms

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicyOnce sync.Once
	htmlPolicy     *bluemonday.Policy
)

// SanitizeHTML strips everything the alert editor cannot produce.
func SanitizeHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return editorSanitizer().Sanitize(raw)
}

func editorSanitizer() *bluemonday.Policy {
	htmlPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("class").Matching(regexp.MustCompile(`^ql-[a-z0-9-]+( ql-[a-z0-9-]+)*$`)).Globally()
		policy.AllowStyles("color", "background-color").Globally()
		htmlPolicy = policy
	})
	return htmlPolicy
}
