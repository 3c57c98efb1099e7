package workflow

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"reinf/internal/model"
)

type keywordSet struct {
	authority  model.Authority
	substrings []string
	words      []string // short tokens, matched as whole words only
}

// Checked in order; first match wins.
var departmentKeywords = []keywordSet{
	{authority: model.AuthorityAccounting, substrings: []string{"contab", "accounting"}},
	{authority: model.AuthorityHR, substrings: []string{"folha", "pessoal", "payroll"}, words: []string{"dp", "rh", "hr"}},
	{authority: model.AuthorityFiscal, substrings: []string{"fiscal", "tribut", "tax"}},
}

// ResolvePermission classifies a department label into a stage authority.
// Administrators get AuthorityAll regardless of label. Unrecognised labels
// get AuthorityNone.
//
// This is a lexical heuristic. At runtime the authority configured on the
// department is used instead (see EffectiveAuthority); this function only
// seeds that configuration.
func ResolvePermission(departmentLabel string, isAdmin bool) model.Authority {
	if isAdmin {
		return model.AuthorityAll
	}
	label := normalizeLabel(departmentLabel)
	if label == "" {
		return model.AuthorityNone
	}

	words := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, set := range departmentKeywords {
		for _, kw := range set.substrings {
			if strings.Contains(label, kw) {
				return set.authority
			}
		}
		for _, kw := range set.words {
			for _, w := range words {
				if w == kw {
					return set.authority
				}
			}
		}
	}
	return model.AuthorityNone
}

// EffectiveAuthority is the authority a requester acts with: everything for
// administrators, otherwise whatever their department is configured with.
func EffectiveAuthority(configured model.Authority, isAdmin bool) model.Authority {
	if isAdmin {
		return model.AuthorityAll
	}
	if configured == "" {
		return model.AuthorityNone
	}
	return configured
}

// Permits reports whether holder may perform an action that requires required.
func Permits(holder, required model.Authority) bool {
	if holder == model.AuthorityAll {
		return true
	}
	return holder != model.AuthorityNone && holder == required
}

// normalizeLabel lower-cases s and strips diacritics ("Contábil" -> "contabil").
func normalizeLabel(s string) string {
	// transform.Chain keeps state, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
