package application

import (
	"fmt"

	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// ProviderRouter owns the single typed provider-selection decision.
// Priority order: the force-aggregator flag wins unconditionally; an
// explicit provider choice is validated against the number's network; with
// no explicit choice the network is inferred from the prefix.
type ProviderRouter struct {
	forceAggregator bool
	clients         map[domain.Provider]provider.Client
}

func NewProviderRouter(forceAggregator bool, clients ...provider.Client) *ProviderRouter {
	m := make(map[domain.Provider]provider.Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &ProviderRouter{
		forceAggregator: forceAggregator,
		clients:         m,
	}
}

// Select decides which provider serves a normalized number. requested may
// be empty, meaning infer from the prefix.
func (r *ProviderRouter) Select(msisdn string, requested domain.Provider) (domain.Provider, error) {
	if r.forceAggregator {
		return domain.ProviderRelworx, nil
	}

	if requested != "" {
		if !requested.Valid() {
			return "", NewInvalidInputError(fmt.Errorf("unknown provider %q", requested))
		}
		if !domain.MatchesProvider(msisdn, requested) {
			return "", NewWrongProviderError(fmt.Errorf("number %s does not match provider %s", msisdn, requested))
		}
		return requested, nil
	}

	network, ok := domain.NetworkFor(msisdn)
	if !ok {
		return "", NewUnsupportedNumberError(fmt.Errorf("number %s matches no supported prefix", msisdn))
	}
	return network, nil
}

// For returns the adapter for a previously selected provider.
func (r *ProviderRouter) For(p domain.Provider) (provider.Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, NewInternalError(fmt.Errorf("no client configured for provider %s", p))
	}
	return c, nil
}
