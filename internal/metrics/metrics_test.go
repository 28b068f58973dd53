package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGlobalRegistersOnce(t *testing.T) {
	a := Global()
	b := Global()
	if a != b {
		t.Fatal("Global must return the same instance")
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "gochat_turns_started_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("turn counter not registered with the default registry")
	}
}
