package whitelist

import (
	"strings"

	"github.com/mikey/llm-daily-brief/internal/core"
	"go.uber.org/zap"
)

// Checker reports senders whose messages always enter the brief.
// Entries containing "@" match a full address, others match the sender's domain.
type Checker struct {
	addresses map[string]struct{}
	domains   map[string]struct{}
	logger    *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		addresses: make(map[string]struct{}),
		domains:   make(map[string]struct{}),
		logger:    logger,
	}

	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.Contains(entry, "@"):
			c.addresses[core.SenderIdentity(entry)] = struct{}{}
		default:
			c.domains[strings.TrimPrefix(entry, "@")] = struct{}{}
		}
	}

	if c.Len() > 0 && logger != nil {
		logger.Info("Initialized sender whitelist",
			zap.Int("addresses", len(c.addresses)),
			zap.Int("domains", len(c.domains)))
	}

	return c
}

// Len returns the number of whitelist entries
func (c *Checker) Len() int {
	return len(c.addresses) + len(c.domains)
}

// IsWhitelisted implements core.SenderMatcher
func (c *Checker) IsWhitelisted(sender string) bool {
	if c.Len() == 0 {
		return false
	}

	identity := core.SenderIdentity(sender)
	if _, ok := c.addresses[identity]; ok {
		c.debug("Sender is whitelisted", identity)
		return true
	}

	domain := core.SenderDomain(sender)
	if domain == "" {
		return false
	}
	if _, ok := c.domains[domain]; ok {
		c.debug("Sender domain is whitelisted", identity)
		return true
	}
	return false
}

func (c *Checker) debug(msg, sender string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("sender", sender))
	}
}
