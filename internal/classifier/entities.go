package classifier

import "regexp"

var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	hostnamePattern = regexp.MustCompile(`(?i)\b(?:server|host|vm|ci)[:\s-]*([a-zA-Z0-9][-a-zA-Z0-9]*)\b`)
	ipv4Pattern     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Entities are the affected user and configuration item mentioned in a ticket.
type Entities struct {
	User string
	CI   string
}

// ExtractAffectedEntities pulls the first email address as the affected user
// and the first host-like token, or failing that an IPv4 address, as the CI.
func ExtractAffectedEntities(text string) Entities {
	var out Entities
	if email := emailPattern.FindString(text); email != "" {
		out.User = email
	}
	if match := hostnamePattern.FindStringSubmatch(text); len(match) > 1 {
		out.CI = match[1]
	}
	if out.CI == "" {
		out.CI = ipv4Pattern.FindString(text)
	}
	return out
}
