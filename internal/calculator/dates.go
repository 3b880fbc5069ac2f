package calculator

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/prepaidrecon/internal/models"
)

const dateLayout = "2006-01-02"

var (
	isoPrefix  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	periodCode = regexp.MustCompile(`^(\d{4})[-_](\d{1,2})$`)
	yearOnly   = regexp.MustCompile(`^\d{4}$`)
	monthOnly  = regexp.MustCompile(`^\d{1,2}$`)
)

// Layouts accepted by ParseDate besides the ISO prefix.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"01-02-06",
}

// ParseDate normalizes s to YYYY-MM-DD. The boolean is false when s is
// blank or matches none of the accepted layouts.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if isoPrefix.MatchString(s) {
		if t, err := time.Parse(dateLayout, s[:10]); err == nil {
			return t.Format(dateLayout), true
		}
		return "", false
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

// ComparableDate returns the YYYY-MM-DD key an apply date is compared
// against a cut-off with. An ISO prefix is kept verbatim even when it names
// no calendar day, so 2024-11-31 still falls after 2024-06-30. Other inputs
// go through ParseDate.
func ComparableDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if isoPrefix.MatchString(s) {
		return s[:10], true
	}
	return ParseDate(s)
}

// ReportDate resolves the apply-date cut-off for a period, in order:
//  1. the period's explicit end date
//  2. a period code or id shaped YYYY-MM or YYYY_MM (last day of that month)
//  3. fiscalYear plus a numeric period id (last day of that month)
//
// An empty result means no cut-off.
func ReportDate(period *models.FiscalPeriod, periodID, fiscalYear string) string {
	periodID = strings.TrimSpace(periodID)
	fiscalYear = strings.TrimSpace(fiscalYear)

	candidates := []string{periodID}
	if period != nil {
		if d, ok := ParseDate(period.EndDate); ok {
			return d
		}
		candidates = append([]string{period.Code, period.ID}, candidates...)
		if fiscalYear == "" {
			fiscalYear = strings.TrimSpace(period.FiscalYear)
		}
	}

	for _, c := range candidates {
		c = strings.Join(strings.Fields(c), "_")
		if m := periodCode.FindStringSubmatch(c); m != nil {
			if d, ok := lastDayOfMonth(m[1], m[2]); ok {
				return d
			}
		}
	}

	if yearOnly.MatchString(fiscalYear) && monthOnly.MatchString(periodID) {
		if d, ok := lastDayOfMonth(fiscalYear, periodID); ok {
			return d
		}
	}
	return ""
}

func lastDayOfMonth(year, month string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	return time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Format(dateLayout), true
}
