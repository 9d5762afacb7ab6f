package logger

import "strings"

// Query parameter names that must never reach log output. Matched as
// substrings so variants like "refresh_token" and "api_key" are caught.
var sensitiveParams = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"email",
	"auth",
	"code",
}

// SanitizedEmail masks an email address for logging, keeping the first
// character of the local part and the TLD: "maria@example.edu" becomes
// "m****@*******.edu".
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "[invalid-email]"
	}
	return maskTail(local) + "@" + maskDomain(domain)
}

func maskTail(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + strings.Repeat("*", len(s)-1)
}

func maskDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return domain
	}
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}
	return strings.Join(labels, ".")
}

// SanitizeQueryString reports whether a raw query string mentions a
// sensitive parameter and should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
