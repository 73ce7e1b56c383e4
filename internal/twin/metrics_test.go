package twin

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/egress"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/ingress"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

type fixedStats Stats

func (f fixedStats) Stats() Stats { return Stats(f) }

func TestCollector(t *testing.T) {
	c := NewCollector(fixedStats{
		Ticks:         7,
		RemoteDropped: 2,
		Ingress:       ingress.Stats{CAN: 10, AVC: 4, DecodeErrors: 1},
		Egress:        egress.Stats{AVC: 3, SendFailures: 1},
		Poller:        egress.PollerStats{Requests: 5, SendFailures: 1},
		Link:          transport.Status{State: transport.StateConnected, Reconnects: 1},
	})

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "{" + l.GetValue() + "}"
			}
			if m.GetCounter() != nil {
				values[key] = m.GetCounter().GetValue()
			} else {
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	tests := []struct {
		key  string
		want float64
	}{
		{"virtualtwin_ticks_total", 7},
		{"virtualtwin_remote_actions_total{dropped}", 2},
		{"virtualtwin_ingress_messages_total{can}", 10},
		{"virtualtwin_ingress_faults_total{decode}", 1},
		{"virtualtwin_egress_commands_total{avc}", 3},
		{"virtualtwin_egress_faults_total{send}", 2},
		{"virtualtwin_diagnostic_requests_total", 5},
		{"virtualtwin_link_state", 2},
		{"virtualtwin_link_reconnects_total", 1},
	}
	for _, tt := range tests {
		got, ok := values[tt.key]
		if !ok {
			t.Errorf("%s not exported", tt.key)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c); n != len(values) {
		t.Errorf("CollectAndCount() = %d, gathered %d", n, len(values))
	}
}
