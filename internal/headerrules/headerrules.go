// Package headerrules applies a subgraph's ordered header rule set
// (forward, insert, remove, rename_duplicate — spec.md §6.1 `headers`) to
// the gateway's inbound header set, producing the exact header bag to send
// to that subgraph.
//
// Forwarding is allowlist, not passthrough: a header with no matching
// forward/rename_duplicate rule is dropped. Rules are evaluated
// first-match-wins in declaration order (resolves spec.md §9 Open Question
// #2 — see DESIGN.md); regex patterns are compiled once at RuleSet
// construction, not per request.
package headerrules

import (
	"net/http"
	"regexp"
	"strings"

	schema "github.com/fedgw/gateway/internal/schema"
)

// RuleSet is one subgraph's header rule set, precompiled for repeated use
// across requests.
type RuleSet struct {
	rules []compiledRule
}

type compiledRule struct {
	schema.HeaderRule
	pattern *regexp.Regexp // non-nil iff HeaderRule.Pattern != ""
}

// Compile precompiles rules in declaration order. A rule whose Pattern
// fails to compile as a regex is dropped (it can never match).
func Compile(rules []schema.HeaderRule) *RuleSet {
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{HeaderRule: r}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				continue
			}
			cr.pattern = re
		}
		rs.rules = append(rs.rules, cr)
	}
	return rs
}

// Apply builds the header set to forward to the subgraph this RuleSet
// belongs to, given in (the gateway's inbound header set).
func (rs *RuleSet) Apply(in http.Header) http.Header {
	out := http.Header{}
	for name, values := range in {
		canon := http.CanonicalHeaderKey(name)
		r, ok := rs.match(canon)
		if !ok {
			continue
		}
		switch r.Kind {
		case schema.HeaderForward:
			target := canon
			if r.Rename != "" {
				target = http.CanonicalHeaderKey(r.Rename)
			}
			out[target] = append(out[target], values...)
		case schema.HeaderRenameDuplicate:
			out[canon] = append(out[canon], values...)
			if r.Rename != "" {
				renamed := http.CanonicalHeaderKey(r.Rename)
				out[renamed] = append(out[renamed], values...)
			}
		case schema.HeaderRemove:
			// matched => dropped, nothing to add.
		}
	}
	for _, r := range rs.rules {
		switch r.Kind {
		case schema.HeaderForward:
			if r.Default == "" || r.Name == "" {
				continue // a regex rule has no literal name to default under
			}
			target := http.CanonicalHeaderKey(r.Name)
			if _, exists := out[target]; !exists {
				out.Set(target, r.Default)
			}
		case schema.HeaderInsert:
			out.Set(r.Name, r.Value)
		}
	}
	return out
}

func (rs *RuleSet) match(name string) (compiledRule, bool) {
	for _, r := range rs.rules {
		switch {
		case r.Kind == schema.HeaderInsert:
			continue
		case r.Name != "" && strings.EqualFold(r.Name, name):
			return r, true
		case r.pattern != nil && r.pattern.MatchString(name):
			return r, true
		}
	}
	return compiledRule{}, false
}
