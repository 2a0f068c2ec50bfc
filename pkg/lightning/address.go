package lightning

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// ParseAddress splits a lightning address (name@domain) into its parts.
func ParseAddress(address string) (name, domain string, err error) {
	trimmed := strings.TrimSpace(address)
	parts := strings.Split(trimmed, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid lightning address %q", address)
	}
	if strings.ContainsAny(parts[1], " /") || !strings.Contains(parts[1], ".") {
		return "", "", fmt.Errorf("invalid lightning address domain %q", parts[1])
	}
	return parts[0], parts[1], nil
}

// CheckAddressDomain verifies the lightning-address domain resolves before a
// payout is attempted, so a typo'd address fails fast instead of burning the
// provider call. Public resolvers first, then the system resolver.
func CheckAddressDomain(address string) error {
	_, domain, err := ParseAddress(address)
	if err != nil {
		return err
	}

	host := dns.Fqdn(domain)
	zap.L().Debug("Resolving lightning address domain", zap.String("host", host))

	publicResolvers := []string{"1.1.1.1:53", "8.8.8.8:53"}
	for _, resolver := range publicResolvers {
		if err := queryAddr(host, resolver); err == nil {
			return nil
		}
	}

	zap.L().Warn("Falling back to system resolver", zap.String("domain", domain))
	client := &dns.Client{Timeout: 3 * time.Second}
	msg := dns.Msg{}
	msg.SetQuestion(host, dns.TypeA)
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err == nil && len(conf.Servers) > 0 {
		if resp, _, err := client.Exchange(&msg, conf.Servers[0]+":53"); err == nil && len(resp.Answer) > 0 {
			return nil
		}
	}

	return fmt.Errorf("lightning address domain %s does not resolve", domain)
}

func queryAddr(host, resolver string) error {
	client := &dns.Client{
		Timeout: 3 * time.Second,
	}

	msg := dns.Msg{}
	msg.SetQuestion(host, dns.TypeA)

	resp, _, err := client.Exchange(&msg, resolver)
	if err != nil {
		zap.L().Debug("DNS query failed", zap.String("resolver", resolver), zap.Error(err))
		return err
	}

	if len(resp.Answer) == 0 {
		return fmt.Errorf("no A record for %s at resolver %s", host, resolver)
	}

	return nil
}
