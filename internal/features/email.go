package features

import (
	"strings"

	"github.com/mbd888/fraudscore/internal/frame"
)

// EmailVendors maps the registrable part of an email domain to its provider.
var EmailVendors = map[string]string{
	"gmail":   "google",
	"yahoo":   "yahoo",
	"hotmail": "microsoft",
	"outlook": "microsoft",
	"live":    "microsoft",
	"msn":     "microsoft",
	"icloud":  "apple",
	"aol":     "aol",
}

var doubleSuffixes = map[string]bool{
	"co.uk": true, "gov.uk": true, "ac.uk": true,
	"co.jp": true, "com.au": true, "net.au": true,
}

// Email presence codes for email_presence.
const (
	EmailBothMissing = iota
	EmailBothPresent
	EmailOnlyPurchaser
	EmailOnlyRecipient
)

// DeriveEmail adds purchaser/recipient email-domain features. Vendor and TLD
// are categorical; the rest are numeric flags. Missing email columns are
// treated as all-null.
func DeriveEmail(t *frame.Table) (*frame.Table, error) {
	n := t.NumRows()
	p := categoricalOrNull(t, "P_emaildomain", n)
	r := categoricalOrNull(t, "R_emaildomain", n)

	var (
		pVendor  = make([]string, n)
		rVendor  = make([]string, n)
		pTLD     = make([]string, n)
		rTLD     = make([]string, n)
		match    = make([]float64, n)
		presence = make([]float64, n)
	)
	for i := 0; i < n; i++ {
		pd := strings.ToLower(p[i])
		rd := strings.ToLower(r[i])
		pVendor[i], pTLD[i] = splitDomain(pd)
		rVendor[i], rTLD[i] = splitDomain(rd)
		match[i] = boolFloat(pd == rd)
		switch {
		case pd != "" && rd != "":
			presence[i] = EmailBothPresent
		case pd != "":
			presence[i] = EmailOnlyPurchaser
		case rd != "":
			presence[i] = EmailOnlyRecipient
		default:
			presence[i] = EmailBothMissing
		}
	}
	return t.With(
		frame.NewCategorical("P_email_vendor", pVendor),
		frame.NewCategorical("R_email_vendor", rVendor),
		frame.NewCategorical("P_email_tld", pTLD),
		frame.NewCategorical("R_email_tld", rTLD),
		frame.NewNumeric("email_domain_match", match),
		frame.NewNumeric("email_presence", presence),
	)
}

// splitDomain returns the vendor ("other" when unknown) and public suffix of
// a domain. An empty domain yields two empty strings.
func splitDomain(domain string) (vendor, tld string) {
	if domain == "" {
		return "", ""
	}
	parts := strings.Split(domain, ".")
	if len(parts) == 1 {
		return vendorOf(parts[0]), ""
	}
	name, suffix := parts[len(parts)-2], parts[len(parts)-1]
	if last2 := strings.Join(parts[len(parts)-2:], "."); doubleSuffixes[last2] {
		suffix = last2
		if len(parts) >= 3 {
			name = parts[len(parts)-3]
		}
	}
	return vendorOf(name), suffix
}

func vendorOf(name string) string {
	if v, ok := EmailVendors[name]; ok {
		return v
	}
	return "other"
}

// categoricalOrNull returns the string values of a categorical column, or n
// empty strings when the column is absent or not categorical.
func categoricalOrNull(t *frame.Table, name string, n int) []string {
	c, err := t.Categorical(name)
	if err != nil {
		return make([]string, n)
	}
	return c.Strings()
}
