package services

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	maxEmailAddressLength = 254
	maxEmailLocalLength   = 64
)

var (
	emailLocalPattern  = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+(\.[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+)*$`)
	emailDomainPattern = regexp.MustCompile(`^([A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,63}$`)
	phonePattern       = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	uuidPattern        = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// IsValidEmailAddress applies a conservative local@domain.tld grammar.
// Quoted local parts and IP-literal domains are rejected.
func IsValidEmailAddress(address string) bool {
	if address == "" || len(address) > maxEmailAddressLength {
		return false
	}
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return false
	}
	local, domain := address[:at], address[at+1:]
	if len(local) > maxEmailLocalLength {
		return false
	}
	return emailLocalPattern.MatchString(local) && emailDomainPattern.MatchString(domain)
}

// NormalizePhoneNumber strips formatting and rewrites a 00 international
// prefix to +.
func NormalizePhoneNumber(raw string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	value := replacer.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(value, "00") {
		value = "+" + value[2:]
	}
	return value
}

// IsValidPhoneNumber expects an already normalized E.164 style number.
func IsValidPhoneNumber(number string) bool {
	return phonePattern.MatchString(number)
}

func isDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsAbsoluteHTTPURL accepts only http and https URLs with a host.
func IsAbsoluteHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

func IsUUID(value string) bool {
	return uuidPattern.MatchString(value)
}
