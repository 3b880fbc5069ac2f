// Package matcher selects source lines for an (entity, period, fiscal year,
// account) filter. Every comparison is trimmed string equality and an empty
// filter component matches everything on that dimension.
package matcher

import (
	"strings"

	"github.com/mmynk/prepaidrecon/internal/models"
)

// Matches reports whether a line key satisfies the entity, period and
// fiscal year components of filter. The fiscal year is only compared when
// both the filter and the line carry one. The account component is ignored;
// use MatchesAccount for that.
func Matches(line, filter models.LineKey) bool {
	line = line.Normalize()
	filter = filter.Normalize()
	if filter.EntityID != "" && line.EntityID != filter.EntityID {
		return false
	}
	if filter.PeriodID != "" && line.PeriodID != filter.PeriodID {
		return false
	}
	if filter.FiscalYear != "" && line.FiscalYear != "" && line.FiscalYear != filter.FiscalYear {
		return false
	}
	return true
}

// MatchesAccount is Matches plus an account equality check when the
// filter names an account.
func MatchesAccount(line, filter models.LineKey) bool {
	if !Matches(line, filter) {
		return false
	}
	account := strings.TrimSpace(filter.Account)
	return account == "" || strings.TrimSpace(line.Account) == account
}

// Filter returns the lines whose keys satisfy MatchesAccount, in input order.
func Filter[L models.Line](lines []L, filter models.LineKey) []L {
	var out []L
	for _, l := range lines {
		if MatchesAccount(l.LineKey(), filter) {
			out = append(out, l)
		}
	}
	return out
}

// First returns the first line satisfying MatchesAccount.
func First[L models.Line](lines []L, filter models.LineKey) (L, bool) {
	for _, l := range lines {
		if MatchesAccount(l.LineKey(), filter) {
			return l, true
		}
	}
	var zero L
	return zero, false
}

// Accounts returns the distinct, non-empty accounts of the lines matching
// filter, in first-seen order.
func Accounts[L models.Line](lines []L, filter models.LineKey) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lines {
		k := l.LineKey()
		if !Matches(k, filter) || k.Account == "" || seen[k.Account] {
			continue
		}
		seen[k.Account] = true
		out = append(out, k.Account)
	}
	return out
}

// Union merges account lists, dropping duplicates and keeping first-seen order.
func Union(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, a := range list {
			a = strings.TrimSpace(a)
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
