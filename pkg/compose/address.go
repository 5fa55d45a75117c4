package compose

import "regexp"

// Basic local@domain.tld shape; deliverability is the backend's problem.
var addressRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidAddress reports whether address looks like an email address.
func ValidAddress(address string) bool {
	return addressRE.MatchString(address)
}
