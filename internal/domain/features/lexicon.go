package features

import (
	"regexp"
	"strings"
)

// Anchor and key:value detectors.
var (
	EmailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	URLRe   = regexp.MustCompile(`(?i)(?:(?:https?://)?(?:www\.)?[A-Za-z0-9.-]+\.[A-Za-z]{2,}(?:/[^\s]*)?)`)
	PhoneRe = regexp.MustCompile(`(?:\+?\d[\d\s\-]{7,}\d)`)
	KVRe    = regexp.MustCompile(`[A-Za-z][A-Za-z\s]{1,30}:`)

	webMarkerRe = regexp.MustCompile(`@|https?://|www\.`)
)

var roleTerms = []string{
	"registrar", "lead manager", "merchant banker", "brlm",
	"contact person", "compliance officer", "company secretary",
	"telephone", "tel", "phone", "fax", "website", "email", "e-mail",
	"bid", "issue opens", "issue closes", "anchor investor", "rta",
}

var financialStatementTerms = []string{
	"balance sheet", "profit and loss", "statement of profit and loss", "cash flow",
	"statement of operations", "consolidated financial", "shareholder equity",
	"financial position", "notes to accounts",
}

var frontPageTokens = []string{
	"registrar", "rta", "brlm", "book running lead manager",
	"global coordinator", "syndicate member", "contact person",
	"company secretary", "compliance officer", "investor relations",
	"email", "e-mail", "website", "web site", "tel", "telephone", "phone", "mobile", "mob.", "fax",
	"link intime", "kfin", "kfintech", "bigshare", "mas services", "cameo",
	"issue opens", "issue closes", "price band", "isin", "cin", "pan", "sebi",
}

// LexiconTerms are the role/contact terms counted by memory signatures.
var LexiconTerms = []string{
	"registrar", "rta", "brlm", "book running lead manager", "lead manager", "merchant banker",
	"contact person", "company secretary", "compliance officer", "investor relations",
	"email", "e-mail", "website", "tel", "telephone", "phone", "fax", "price band", "isin", "cin", "pan", "sebi",
}

// Anchors summarises contact signals in a text blob.
type Anchors struct {
	Email bool
	URL   bool
	Phone bool
	KV    int
	Roles int
}

// Count is the number of distinct anchor kinds present (0..3).
func (a Anchors) Count() int {
	n := 0
	for _, ok := range []bool{a.Email, a.URL, a.Phone} {
		if ok {
			n++
		}
	}
	return n
}

// AnchorStats computes anchors, key:value labels and role hits for text.
func AnchorStats(text string) Anchors {
	lower := strings.ToLower(text)
	return Anchors{
		Email: EmailRe.MatchString(text),
		URL:   URLRe.MatchString(text),
		Phone: PhoneRe.MatchString(text),
		KV:    len(KVRe.FindAllStringIndex(text, -1)),
		Roles: CountTerms(lower, roleTerms),
	}
}

// HasFinancialStatementTerm reports a financial-statement lexicon hit in lowercase text.
func HasFinancialStatementTerm(lower string) bool {
	return ContainsAny(lower, financialStatementTerms)
}

// LooksLikeContactText reports front-page tokens or web/email markers in lowercase text.
func LooksLikeContactText(lower string) bool {
	return ContainsAny(lower, frontPageTokens) || webMarkerRe.MatchString(lower)
}

// Period markers used for header composition and confidence.
var periodMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(as on|as at|as of|for the|nine months|half year|quarter|q[1-4]|h[12]|fy)\b`),
	regexp.MustCompile(`(?i)\b(ended|ending)\b`),
	regexp.MustCompile(`\b(20\d{2}|19\d{2})\b`),
	regexp.MustCompile(`(?i)₹\s*(in|million|crore|lakh)\b`),
	regexp.MustCompile(`(?i)\bfy\s*\d{2}\s*[-/]\s*\d{2}\b`),
	regexp.MustCompile(`(?i)\bfy\s*'?\d{2}(\d{2})?\b`),
	regexp.MustCompile(`(?i)\b(rs\.?|inr)\s*(in\s+)?(million|crore|lakh)s?\b`),
}

// MatchesPeriodMarker reports whether s carries any period marker.
func MatchesPeriodMarker(s string) bool {
	for _, re := range periodMarkers {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var (
	yearRe      = regexp.MustCompile(`(?:19|20)\d{2}`)
	monthTokens = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec"}
)

// HasPeriodTokens reports month names or year-shaped numbers in lowercase text.
func HasPeriodTokens(lower string) bool {
	return ContainsAny(lower, monthTokens) || yearRe.MatchString(lower)
}

// HasYear reports a 19xx/20xx sequence anywhere in s.
func HasYear(s string) bool { return yearRe.MatchString(s) }

// EmailCount, URLCount and PhoneCount count raw matches (not presence).
func EmailCount(text string) int { return len(EmailRe.FindAllStringIndex(text, -1)) }
func URLCount(text string) int   { return len(URLRe.FindAllStringIndex(text, -1)) }
func PhoneCount(text string) int { return len(PhoneRe.FindAllStringIndex(text, -1)) }

// HeaderHasPeriod reports a header naming a year, an "ended" period or any period marker.
func HeaderHasPeriod(h string) bool {
	return HasYear(h) || strings.Contains(strings.ToLower(h), "ended") || MatchesPeriodMarker(h)
}
