package session

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// platformSuffix is appended to a bare phone number to form a destination id.
const platformSuffix = "@s.whatsapp.net"

// ResolveJID turns a destination into a full platform id. Values already
// containing "@" (group ids, linked ids) pass through untouched. Bare phones
// are cleaned to digits and, when written in national form (leading zero),
// expanded to international digits using the default region.
func ResolveJID(destination, defaultRegion string) string {
	if strings.Contains(destination, "@") {
		return destination
	}

	digits := keepDigits(destination)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(digits, "0") && defaultRegion != "" {
		if num, err := phonenumbers.Parse(digits, defaultRegion); err == nil && phonenumbers.IsValidNumber(num) {
			digits = keepDigits(phonenumbers.Format(num, phonenumbers.E164))
		}
	}
	return digits + platformSuffix
}

// PhoneFromJID extracts the bare phone key from a platform id.
func PhoneFromJID(jid string) string {
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		return jid[:at]
	}
	return jid
}

func keepDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
