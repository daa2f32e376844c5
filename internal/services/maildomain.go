package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Resolver is the subset of *net.Resolver used for mail domain checks.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// MailDomainChecker rejects addresses whose domain cannot receive mail.
type MailDomainChecker struct {
	resolver Resolver
	timeout  time.Duration
}

func NewMailDomainChecker(r Resolver, timeout time.Duration) *MailDomainChecker {
	if r == nil {
		r = &net.Resolver{}
	}
	return &MailDomainChecker{resolver: r, timeout: timeout}
}

// Accepts reports false only when DNS says the domain does not exist or has
// neither MX nor address records. Lookup failures such as timeouts accept.
func (c *MailDomainChecker) Accepts(ctx context.Context, email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(email[at+1:])), ".")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mx, err := c.resolver.LookupMX(ctx, domain)
	if err == nil && len(mx) > 0 {
		// RFC 7505 null MX: the domain explicitly accepts no mail.
		if len(mx) == 1 && mx[0].Host == "." {
			return false
		}
		return true
	}
	if err != nil && !notFound(err) {
		return true
	}

	// Implicit MX: fall back to the domain's A/AAAA records.
	hosts, err := c.resolver.LookupHost(ctx, domain)
	if err != nil {
		return !notFound(err)
	}
	return len(hosts) > 0
}

func notFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
