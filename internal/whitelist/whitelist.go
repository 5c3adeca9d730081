package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender is trusted to load remote images
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new trusted sender checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
		domain = strings.TrimPrefix(domain, "@")
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if len(normalizedDomains) > 0 {
		logger.Info("Initialized trusted sender checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// IsTrusted reports whether the sender's domain, or a parent of it, is
// trusted. from may be a bare address or a display form like
// "Name <user@example.com>".
func (c *Checker) IsTrusted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := senderDomain(from)
	if domain == "" {
		return false
	}

	for _, trusted := range c.domains {
		if domain == trusted || strings.HasSuffix(domain, "."+trusted) {
			c.logger.Debug("Sender domain is trusted",
				zap.String("domain", domain),
				zap.String("sender", from))
			return true
		}
	}

	return false
}

// Domains returns the normalized trusted domains.
func (c *Checker) Domains() []string {
	out := make([]string, len(c.domains))
	copy(out, c.domains)
	return out
}

func senderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}

	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.Trim(strings.ToLower(address[at+1:]), ".> ")
}
