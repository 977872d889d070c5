package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestHelpersAfterRegister(t *testing.T) {
	_ = Register(prometheus.NewRegistry())
	// must not panic
	IncLaunch("foo")
	IncCompletion("foo")
	IncCrash("foo")
	IncRejection("duplicate")
	SetActiveGames(2)
	ObserveRunDuration("foo", 1.5)
}
