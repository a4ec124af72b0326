// Package proxy implements proxy pool selection for units that make
// outbound network requests (e.g. a download unit fetching a URL
// target). A pool rotates through its endpoints by strategy:
// round-robin, or random with an optional recency window that excludes
// the last few selected endpoints from the next pick.
package proxy

import "fmt"

// Protocol is the proxy protocol an endpoint speaks.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "https"
	ProtocolSOCKS5 Protocol = "socks5"
)

// Strategy is the endpoint selection strategy for a Pool.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
)

// Endpoint is a single proxy a unit can dial through.
type Endpoint struct {
	Protocol Protocol
	Host     string
	Port     int
	Username *string
	Password *string
}

// Validate checks an endpoint's required fields and auth pairing.
func (e *Endpoint) Validate() error {
	switch e.Protocol {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS5:
	default:
		return fmt.Errorf("invalid protocol %q: must be http, https, or socks5", e.Protocol)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", e.Port)
	}
	hasUsername := e.Username != nil && *e.Username != ""
	hasPassword := e.Password != nil && *e.Password != ""
	if hasUsername != hasPassword {
		return fmt.Errorf("username and password must be provided together")
	}
	return nil
}

// Pool defines a named set of endpoints and a rotation strategy.
type Pool struct {
	Name      string
	Strategy  Strategy
	Endpoints []Endpoint
	// RecencyWindow, when set, excludes the last N selected endpoints from
	// the random strategy's candidate set, so consecutive random picks
	// avoid immediate repeats.
	RecencyWindow *int
}

// LargePoolThreshold is the endpoint count above which round_robin is
// discouraged in favor of random.
const LargePoolThreshold = 50

// Validate checks a pool's required fields and every endpoint's validity.
func (p *Pool) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pool name is required")
	}
	switch p.Strategy {
	case StrategyRoundRobin, StrategyRandom:
	default:
		return fmt.Errorf("invalid strategy %q: must be round_robin or random", p.Strategy)
	}
	if len(p.Endpoints) == 0 {
		return fmt.Errorf("pool must have at least one endpoint")
	}
	for i, ep := range p.Endpoints {
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("endpoints[%d]: %w", i, err)
		}
	}
	if p.RecencyWindow != nil && *p.RecencyWindow <= 0 {
		return fmt.Errorf("recency window must be positive")
	}
	return nil
}

// Warnings returns non-fatal issues worth surfacing to the operator,
// without rejecting the pool outright.
func (p *Pool) Warnings() []string {
	var warnings []string
	if p.Strategy == StrategyRoundRobin && len(p.Endpoints) > LargePoolThreshold {
		warnings = append(warnings, fmt.Sprintf("pool %q has %d endpoints with round_robin strategy; consider random for large pools", p.Name, len(p.Endpoints)))
	}
	for _, ep := range p.Endpoints {
		if ep.Protocol == ProtocolSOCKS5 {
			warnings = append(warnings, fmt.Sprintf("pool %q contains socks5 endpoints; socks5 support varies by HTTP client", p.Name))
			break
		}
	}
	return warnings
}
