package serviceresolver

import (
	"fmt"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/miekg/dns"
)

// defaultResolverAddr is the local systemd-resolved stub listener.
const defaultResolverAddr = "127.0.0.53:53"

// RecoveryService describes where a recovery service can be reached.
type RecoveryService struct {
	// Domains are the service domain names registered on the ledger.
	Domains []string

	// Endpoints are the SRV targets the domains currently resolve to.
	Endpoints []string
}

// Resolver resolves ledger-registered service domains to endpoints.
type Resolver struct {
	discovery    interfaces.ServiceDiscovery
	resolverAddr string
}

// NewResolver creates a resolver over the given discovery source. An empty
// resolverAddr falls back to the local DNS stub resolver.
func NewResolver(discovery interfaces.ServiceDiscovery, resolverAddr string) *Resolver {
	if resolverAddr == "" {
		resolverAddr = defaultResolverAddr
	}
	return &Resolver{discovery: discovery, resolverAddr: resolverAddr}
}

// ResolveRecoveryService queries the ledger for registered service domains
// and resolves each to its SRV targets. Domains that fail to resolve are
// skipped; an error is returned only when the ledger query fails or no
// domain is registered.
func (r *Resolver) ResolveRecoveryService() (*RecoveryService, error) {
	domains, err := r.discovery.ServiceDomainNames()
	if err != nil {
		return nil, fmt.Errorf("failed to query service domains: %w", err)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("no recovery service domains registered")
	}

	endpoints := []string{}
	for _, domain := range domains {
		targets, err := r.resolveSRV(domain)
		if err != nil {
			continue
		}
		endpoints = append(endpoints, targets...)
	}

	return &RecoveryService{
		Domains:   domains,
		Endpoints: endpoints,
	}, nil
}

// resolveSRV queries SRV records for the domain and returns target:port
// pairs.
func (r *Resolver) resolveSRV(domain string) ([]string, error) {
	msg := new(dns.Msg)
	msg.Id = dns.Id()
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{Name: dns.Fqdn(domain), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}}

	client := new(dns.Client)
	in, _, err := client.Exchange(msg, r.resolverAddr)
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			targets = append(targets, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
		}
	}
	return targets, nil
}
