// Package download implements a unit that treats an http(s) URL payload
// as a target: it fetches the URL, optionally through a named proxy
// pool, and either persists the body as an artifact (when a store is
// configured) or feeds the body back in for further analysis. No original katana source exists for it to
// port from; it is written in the idiom of units/railfence and wired
// to exercise proxy.Selector and lode.ArtifactStore, both of which have
// no other unit in this tree driving them.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/sable-labs/katana/config"
	"github.com/sable-labs/katana/finder"
	"github.com/sable-labs/katana/lode"
	"github.com/sable-labs/katana/proxy"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

const name = "download"

var urlPattern = regexp.MustCompile(`(?i)^https?://`)

// deps holds the shared collaborators every constructed Unit needs but
// that the finder.Constructor signature has no room to pass explicitly.
// Configure must be called once, before the engine starts, if the
// download unit's manifest entry is in play.
type deps struct {
	selector *proxy.Selector
	pool     string
	store    *lode.ArtifactStore
	client   *http.Client
}

var shared *deps

// Configure wires the download unit's collaborators. cfg's
// [proxy.<pool>] section (if pool is non-empty) is registered with a
// fresh Selector; artifacts are written through store, which may be
// nil to skip artifact persistence.
func Configure(cfg *config.Config, pool string, store *lode.ArtifactStore) error {
	d := &deps{pool: pool, store: store, client: &http.Client{Timeout: 30 * time.Second}}

	if pool != "" {
		p, err := poolFromConfig(cfg, pool)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		d.selector = proxy.NewSelector()
		if err := d.selector.RegisterPool(p); err != nil {
			return fmt.Errorf("download: register pool %q: %w", pool, err)
		}
	}

	shared = d
	return nil
}

// poolFromConfig reads a [proxy] pool definition out of cfg. A pool is
// declared as a "strategy" key plus a comma- or newline-separated
// "endpoint" key, within a config section named after the pool, e.g.:
//
//	[proxy.primary]
//	strategy = round_robin
//	endpoint = http://p1.example.com:8080, http://p2.example.com:8080
//	recency-window = 1
//
// recency-window only applies to the random strategy; round_robin
// ignores it.
func poolFromConfig(cfg *config.Config, name string) (*proxy.Pool, error) {
	section := "proxy." + name
	strategy := proxy.Strategy(cfg.GetString(section, "strategy", string(proxy.StrategyRoundRobin)))

	var endpoints []proxy.Endpoint
	for _, raw := range cfg.GetList(section, "endpoint") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
		}
		ep, err := endpointFromURL(u)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}

	pool := &proxy.Pool{Name: name, Strategy: strategy, Endpoints: endpoints}
	if cfg.Has(section, "recency-window") {
		window, err := cfg.GetInt(section, "recency-window", 0)
		if err != nil {
			return nil, fmt.Errorf("invalid recency-window: %w", err)
		}
		pool.RecencyWindow = &window
	}

	return pool, nil
}

func endpointFromURL(u *url.URL) (proxy.Endpoint, error) {
	var port int
	if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
		switch u.Scheme {
		case "https":
			port = 443
		default:
			port = 80
		}
	}
	ep := proxy.Endpoint{Protocol: proxy.Protocol(u.Scheme), Host: u.Hostname(), Port: port}
	if u.User != nil {
		username := u.User.Username()
		ep.Username = &username
		if pw, ok := u.User.Password(); ok {
			ep.Password = &pw
		}
	}
	return ep, nil
}

func init() {
	finder.Register(name, func(t *target.Target, mgr unit.Registrar) unit.Unit {
		return &Unit{tgt: t, mgr: mgr}
	})
}

// Unit fetches the URL named by its target's payload.
type Unit struct {
	tgt *target.Target
	mgr unit.Registrar
}

func (u *Unit) Target() *target.Target  { return u.tgt }
func (u *Unit) Origin() *target.Target  { return u.tgt.Origin() }
func (u *Unit) Priority() int           { return 80 }
func (u *Unit) StrictFlags() bool       { return false }
func (u *Unit) ProtectedRecurse() bool  { return false }
func (u *Unit) Enumerate() unit.CaseSeq { return &once{} }

// Evaluate performs the HTTP GET. If a store is configured and the write
// succeeds, it registers the stored path as an artifact and does not
// register the body as data; otherwise it registers the body as data for
// flag search and further recursion.
func (u *Unit) Evaluate(c unit.Case) error {
	d := shared
	if d == nil {
		d = &deps{client: http.DefaultClient}
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, string(u.tgt.Payload), nil)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	client := d.client
	if d.selector != nil {
		proxied, err := proxiedClient(d, req.URL)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		client = proxied
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("download: read body: %w", err)
	}

	if d.store != nil {
		relPath := fmt.Sprintf("download/%s", sanitizeName(req.URL))
		if err := d.store.Put(context.Background(), relPath, body); err == nil {
			u.mgr.RegisterArtifact(u, relPath, true)
			return nil
		}
	}

	u.mgr.RegisterData(u, body, true)
	return nil
}

func proxiedClient(d *deps, target *url.URL) (*http.Client, error) {
	ep, err := d.selector.Select(proxy.SelectRequest{Pool: d.pool, Domain: target.Hostname(), Commit: true})
	if err != nil {
		return nil, err
	}
	proxyURL := fmt.Sprintf("%s://%s:%d", ep.Protocol, ep.Host, ep.Port)
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{Proxy: http.ProxyURL(parsed)}
	return &http.Client{Timeout: d.client.Timeout, Transport: transport}, nil
}

func sanitizeName(u *url.URL) string {
	name := u.Hostname() + u.Path
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b == '/' || b == '?' || b == '#' {
			out = append(out, '_')
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return "index"
	}
	return string(out)
}

type once struct{ done bool }

func (o *once) Next() (unit.Case, bool) {
	if o.done {
		return nil, false
	}
	o.done = true
	return struct{}{}, true
}

var _ unit.Unit = (*Unit)(nil)

// Applicable reports whether payload looks like an http(s) URL.
// finder.Finder does not call it: the unit's applicability there comes
// only from the match regex of its manifest entry.
func Applicable(payload []byte) bool {
	return urlPattern.Match(payload)
}
