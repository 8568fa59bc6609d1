package core

import (
	"net/mail"
	"strings"
)

// SenderIdentity normalizes a free-form sender to the key used for reputation.
// "Jane Doe <Jane@Example.com>" and "jane@example.com" share the identity
// "jane@example.com". Unparseable senders fall back to the trimmed lower-cased string.
func SenderIdentity(sender string) string {
	sender = strings.TrimSpace(sender)
	if addr, err := mail.ParseAddress(sender); err == nil && addr.Address != "" {
		return strings.ToLower(addr.Address)
	}
	if start := strings.LastIndex(sender, "<"); start >= 0 {
		if end := strings.LastIndex(sender, ">"); end > start {
			return strings.ToLower(strings.TrimSpace(sender[start+1 : end]))
		}
	}
	return strings.ToLower(sender)
}

// SenderDomain returns the domain part of the sender identity, or "" when there is none
func SenderDomain(sender string) string {
	identity := SenderIdentity(sender)
	at := strings.LastIndex(identity, "@")
	if at < 0 || at == len(identity)-1 {
		return ""
	}
	return identity[at+1:]
}
