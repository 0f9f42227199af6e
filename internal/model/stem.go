package model

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// installmentRe matches the "NN/MM" marker card issuers append to
// installment purchases, e.g. "LOJAS AMERICANAS PARC 02/10".
var installmentRe = regexp.MustCompile(`(\d{1,2})\s*/\s*(\d{1,2})`)

// MerchantStem normalizes a transaction description down to the merchant
// identity: lowercased, digits and punctuation dropped, whitespace
// collapsed. "IFOOD*RESTAURANTE 03/12" and "IFOOD RESTAURANTE" share a stem.
func MerchantStem(description string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(description) {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseInstallment extracts the current and total installment numbers from a
// description, if present. A marker like "13/2" (current past total) is not
// a valid installment.
func ParseInstallment(description string) (current, total int, ok bool) {
	m := installmentRe.FindStringSubmatch(description)
	if m == nil {
		return 0, 0, false
	}
	current, _ = strconv.Atoi(m[1])
	total, _ = strconv.Atoi(m[2])
	if current < 1 || total < 2 || current > total {
		return 0, 0, false
	}
	return current, total, true
}
