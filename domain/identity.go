package domain

import "strings"

// GuestIdentity is used when no display name was given.
const GuestIdentity Identity = "Guest"

// Identity is the display name chosen once per client.
// It only separates "mine" from "others'" when rendering and carries no trust.
type Identity string

// NewIdentity trims the name and falls back to GuestIdentity when nothing is left.
func NewIdentity(name string) Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		return GuestIdentity
	}
	return Identity(name)
}

func (i Identity) String() string {
	return string(i)
}
