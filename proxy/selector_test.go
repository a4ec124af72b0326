package proxy

import "testing"

func TestSelector_RoundRobin(t *testing.T) {
	s := NewSelector()

	pool := &Pool{
		Name:     "test",
		Strategy: StrategyRoundRobin,
		Endpoints: []Endpoint{
			{Protocol: ProtocolHTTP, Host: "p1.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p2.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p3.example.com", Port: 8080},
		},
	}

	if err := s.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool failed: %v", err)
	}

	// Select in round-robin order
	hosts := make([]string, 6)
	for i := 0; i < 6; i++ {
		ep, err := s.Select(SelectRequest{Pool: "test", Commit: true})
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		hosts[i] = ep.Host
	}

	// Should cycle through endpoints
	expected := []string{
		"p1.example.com",
		"p2.example.com",
		"p3.example.com",
		"p1.example.com",
		"p2.example.com",
		"p3.example.com",
	}

	for i, exp := range expected {
		if hosts[i] != exp {
			t.Errorf("hosts[%d] = %q, want %q", i, hosts[i], exp)
		}
	}
}

func TestSelector_Random(t *testing.T) {
	s := NewSelector()

	pool := &Pool{
		Name:     "test",
		Strategy: StrategyRandom,
		Endpoints: []Endpoint{
			{Protocol: ProtocolHTTP, Host: "p1.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p2.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p3.example.com", Port: 8080},
		},
	}

	if err := s.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool failed: %v", err)
	}

	// Select multiple times - should not panic
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ep, err := s.Select(SelectRequest{Pool: "test", Commit: true})
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		seen[ep.Host] = true
	}

	// With 100 selections, we should see all endpoints (probabilistically)
	if len(seen) < 2 {
		t.Errorf("random selection seems broken: only saw %d unique hosts", len(seen))
	}
}

func TestSelector_Random_RecencyWindowExcludesLastPick(t *testing.T) {
	s := NewSelector()

	window := 1
	pool := &Pool{
		Name:     "test",
		Strategy: StrategyRandom,
		Endpoints: []Endpoint{
			{Protocol: ProtocolHTTP, Host: "p1.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p2.example.com", Port: 8080},
		},
		RecencyWindow: &window,
	}

	if err := s.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool failed: %v", err)
	}

	prev := ""
	for i := 0; i < 10; i++ {
		ep, err := s.Select(SelectRequest{Pool: "test", Commit: true})
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if prev != "" && ep.Host == prev {
			t.Errorf("iteration %d: got repeat endpoint %q with a one-wide recency window", i, ep.Host)
		}
		prev = ep.Host
	}
}

func TestSelector_StrategyOverride(t *testing.T) {
	s := NewSelector()

	pool := &Pool{
		Name:     "test",
		Strategy: StrategyRoundRobin, // Default is round-robin
		Endpoints: []Endpoint{
			{Protocol: ProtocolHTTP, Host: "p1.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p2.example.com", Port: 8080},
		},
	}

	if err := s.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool failed: %v", err)
	}

	// Override to random
	randomStrategy := StrategyRandom
	_, err := s.Select(SelectRequest{
		Pool:             "test",
		StrategyOverride: &randomStrategy,
		Commit:           true,
	})
	if err != nil {
		t.Fatalf("Select with strategy override failed: %v", err)
	}
}

func TestSelector_PoolNotFound(t *testing.T) {
	s := NewSelector()

	_, err := s.Select(SelectRequest{Pool: "nonexistent"})
	if err == nil {
		t.Error("expected error for nonexistent pool")
	}
}

func TestSelector_ValidationFailure(t *testing.T) {
	s := NewSelector()

	pool := &Pool{
		Name:      "test",
		Strategy:  StrategyRoundRobin,
		Endpoints: []Endpoint{}, // Invalid: no endpoints
	}

	err := s.RegisterPool(pool)
	if err == nil {
		t.Error("expected validation error for empty endpoints")
	}
}

func TestSelector_Stats(t *testing.T) {
	s := NewSelector()

	window := 2
	pool := &Pool{
		Name:     "test",
		Strategy: StrategyRoundRobin,
		Endpoints: []Endpoint{
			{Protocol: ProtocolHTTP, Host: "p1.example.com", Port: 8080},
			{Protocol: ProtocolHTTP, Host: "p2.example.com", Port: 8080},
		},
		RecencyWindow: &window,
	}

	if err := s.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool failed: %v", err)
	}

	s.Select(SelectRequest{Pool: "test", Commit: true})
	s.Select(SelectRequest{Pool: "test", Commit: true})

	stats, err := s.Stats("test")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.RoundRobinIndex != 2 {
		t.Errorf("RoundRobinIndex = %d, want 2", stats.RoundRobinIndex)
	}
	if stats.RecencyWindow != 2 {
		t.Errorf("RecencyWindow = %d, want 2", stats.RecencyWindow)
	}
}
