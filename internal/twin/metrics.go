package twin

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/metrics"
)

// StatsSource provides the counters a Collector exports.
type StatsSource interface {
	Stats() Stats
}

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(metrics.Namespace, "", name), help, labels, nil)
}

var (
	descTicks         = desc("ticks_total", "App loop ticks.")
	descRemote        = desc("remote_actions_total", "Remote actions by result.", "result")
	descRemoteQueued  = desc("remote_queue_depth", "Remote actions waiting for the next tick.")
	descStoreActions  = desc("store_actions_total", "Dispatched actions by result.", "result")
	descStoreClamps   = desc("store_clamps_total", "Values clamped by reducers.")
	descStorePanics   = desc("store_subscriber_panics_total", "Recovered subscriber panics.")
	descRuleEvals     = desc("rule_evaluations_total", "Rule evaluations.")
	descRuleActions   = desc("rule_actions_total", "Actions dispatched by rules.")
	descRuleErrors    = desc("rule_errors_total", "Rule evaluation errors.")
	descCascade       = desc("rule_cascade_faults_total", "Rule actions dropped at the cascade bound.")
	descIngress       = desc("ingress_messages_total", "Inbound messages by channel group.", "channel")
	descIngressFaults = desc("ingress_faults_total", "Inbound faults by kind.", "kind")
	descEgress        = desc("egress_commands_total", "Outbound commands by bus.", "bus")
	descEgressFaults  = desc("egress_faults_total", "Outbound faults by kind.", "kind")
	descPolls         = desc("diagnostic_requests_total", "Diagnostic PID requests sent.")
	descLinkState     = desc("link_state", "Gateway link state (0 disconnected, 1 connecting, 2 connected, 3 stopped).")
	descLinkAttempts  = desc("link_connect_attempts_total", "Gateway connection attempts.")
	descLinkRecon     = desc("link_reconnects_total", "Gateway reconnections.")
	descLinkDropped   = desc("link_dropped_total", "Messages dropped at the link queues by direction.", "direction")
	descLinkParse     = desc("link_parse_errors_total", "Undecodable gateway lines.")
)

// Collector exports twin counters to Prometheus. Values are read from
// Stats on every scrape.
type Collector struct {
	source StatsSource
}

// NewCollector creates a collector over source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descTicks, descRemote, descRemoteQueued, descStoreActions, descStoreClamps, descStorePanics,
		descRuleEvals, descRuleActions, descRuleErrors, descCascade, descIngress, descIngressFaults,
		descEgress, descEgressFaults, descPolls, descLinkState, descLinkAttempts, descLinkRecon,
		descLinkDropped, descLinkParse,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(descTicks, s.Ticks)
	counter(descRemote, s.RemoteApplied, "applied")
	counter(descRemote, s.RemoteDropped, "dropped")
	gauge(descRemoteQueued, float64(s.RemoteQueued))

	counter(descStoreActions, s.Store.Applied, "applied")
	counter(descStoreActions, s.Store.NoOps, "noop")
	counter(descStoreClamps, s.Store.Clamps)
	counter(descStorePanics, s.Store.Panics)

	counter(descRuleEvals, s.Rules.Evaluations)
	counter(descRuleActions, s.Rules.Actions)
	counter(descRuleErrors, s.Rules.Errors)
	counter(descCascade, s.Rules.CascadeFaults)

	counter(descIngress, s.Ingress.System, "system")
	counter(descIngress, s.Ingress.CAN, "can")
	counter(descIngress, s.Ingress.AVC, "avc")
	counter(descIngress, s.Ingress.Satellite, "satellite")
	counter(descIngress, s.Ingress.Unknown, "unknown")
	counter(descIngressFaults, s.Ingress.DecodeErrors, "decode")
	counter(descIngressFaults, s.Ingress.OutOfSpec, "out_of_spec")

	counter(descEgress, s.Egress.AVC, "avc")
	counter(descEgress, s.Egress.Satellite, "satellite")
	counter(descEgressFaults, s.Egress.SendFailures+s.Poller.SendFailures, "send")
	counter(descEgressFaults, s.Egress.EncodeErrors, "encode")
	counter(descPolls, s.Poller.Requests)

	gauge(descLinkState, float64(s.Link.State))
	counter(descLinkAttempts, s.Link.Attempts)
	counter(descLinkRecon, s.Link.Reconnects)
	counter(descLinkDropped, s.Link.RxDropped, "rx")
	counter(descLinkDropped, s.Link.TxDropped+s.Link.TxDrained, "tx")
	counter(descLinkParse, s.Link.ParseErrors)
}
