// Package router decides which upstream vendor serves a requested model.
package router

import "strings"

// Vendor identifies an upstream model API family.
type Vendor string

const (
	VendorClaude Vendor = "claude"
	VendorGPT    Vendor = "gpt"
)

// Keyword tables are disjoint; GPT keywords are checked first and Claude is
// the default for anything unrecognized, including an empty model name.
var (
	gptKeywords    = []string{"gpt", "openai", "codex", "o1", "o3"}
	claudeKeywords = []string{"claude", "anthropic"}
)

// Route maps a caller-supplied model name to a vendor. It is pure and
// deterministic; there are no error cases.
func Route(model string) Vendor {
	if model == "" {
		return VendorClaude
	}

	name := strings.ToLower(model)

	for _, kw := range gptKeywords {
		if strings.Contains(name, kw) {
			return VendorGPT
		}
	}

	for _, kw := range claudeKeywords {
		if strings.Contains(name, kw) {
			return VendorClaude
		}
	}

	return VendorClaude
}
