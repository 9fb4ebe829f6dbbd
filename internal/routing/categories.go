package routing

import "strings"

// CategoryRule maps description keywords to the processor best suited for
// that kind of business. Rules are evaluated in order; the first match
// wins, so more specific categories come before broader ones.
type CategoryRule struct {
	Name      string
	Keywords  []string
	Processor string
}

// Matches reports whether the description mentions any rule keyword.
func (r CategoryRule) Matches(description string) bool {
	desc := strings.ToLower(description)
	for _, kw := range r.Keywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// DefaultCategoryRules returns the built-in category routing table.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{
			Name:      "crypto",
			Keywords:  []string{"crypto", "web3", "defi", "nft", "token", "blockchain", "wallet"},
			Processor: "crossmint",
		},
		{
			Name:      "b2b",
			Keywords:  []string{"b2b", "enterprise", "business", "subscription"},
			Processor: "stripe",
		},
		{
			Name:      "marketplace",
			Keywords:  []string{"marketplace", "ecommerce", "consumer"},
			Processor: "paypal",
		},
		{
			Name:      "retail",
			Keywords:  []string{"retail", "pos", "store"},
			Processor: "square",
		},
		{
			Name:      "international",
			Keywords:  []string{"international", "global", "cross-border"},
			Processor: "adyen",
		},
	}
}

// matchCategory returns the first rule matching the description.
func matchCategory(rules []CategoryRule, description string) (CategoryRule, bool) {
	for _, r := range rules {
		if r.Matches(description) {
			return r, true
		}
	}
	return CategoryRule{}, false
}
