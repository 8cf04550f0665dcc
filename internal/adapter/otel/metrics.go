package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "solrelay"

// Metrics holds all relay metric instruments. With no MeterProvider
// installed the instruments are no-ops.
type Metrics struct {
	UpstreamAttempts    metric.Int64Counter
	UpstreamSubscribed  metric.Int64Counter
	UpstreamDisconnects metric.Int64Counter
	MessagesReceived    metric.Int64Counter
	MessagesSkipped     metric.Int64Counter
	EventsPublished     metric.Int64Counter
	EventsDuplicate     metric.Int64Counter
	ClientsActive       metric.Int64UpDownCounter
	ClientHandshakeErrs metric.Int64Counter
	ClientSendErrs      metric.Int64Counter
	ClientLaggedEvents  metric.Int64Counter
	FramesDelivered     metric.Int64Counter
	SessionDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments from the global MeterProvider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.UpstreamAttempts, "solrelay.upstream.attempts", "Upstream connection attempts"},
		{&m.UpstreamSubscribed, "solrelay.upstream.subscribed", "Upstream sessions that reached the subscribed state"},
		{&m.UpstreamDisconnects, "solrelay.upstream.disconnects", "Upstream sessions that ended"},
		{&m.MessagesReceived, "solrelay.upstream.messages", "Text frames received from upstream"},
		{&m.MessagesSkipped, "solrelay.upstream.messages_skipped", "Upstream frames that produced no event"},
		{&m.EventsPublished, "solrelay.bus.published", "Events published to the bus"},
		{&m.EventsDuplicate, "solrelay.bus.duplicates", "Events suppressed by the signature dedup window"},
		{&m.ClientHandshakeErrs, "solrelay.clients.handshake_errors", "Downstream upgrades that failed"},
		{&m.ClientSendErrs, "solrelay.clients.send_errors", "Downstream writes that failed"},
		{&m.ClientLaggedEvents, "solrelay.clients.lagged_events", "Events skipped by lagging clients"},
		{&m.FramesDelivered, "solrelay.clients.frames", "Frames written to downstream clients"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.ClientsActive, err = meter.Int64UpDownCounter("solrelay.clients.active",
		metric.WithDescription("Connected downstream clients"))
	if err != nil {
		return nil, err
	}

	m.SessionDuration, err = meter.Float64Histogram("solrelay.upstream.session_seconds",
		metric.WithDescription("Upstream session lifetime in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
