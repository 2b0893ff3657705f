// Package exporter publishes session transfer totals as Prometheus
// metrics. One Collector covers any number of live device sessions;
// sessions register on open and deregister on close, and a session found
// dead during collection is dropped with a note to the error callback.
package exporter

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rjenkinsjr/lufo"
	"github.com/rjenkinsjr/lufo/session"
)

type info struct {
	description *prometheus.Desc
	supplier    func(c session.CounterValues, labelValues []string) prometheus.Metric
}

// Collector implements prometheus.Collector over registered sessions.
type Collector struct {
	sessions map[*lufo.Device][]string
	mu       sync.Mutex
	logger   func(error)
	infos    []info
}

// NewCollector returns a Collector publishing under the given metric
// prefix. The session labels are known up front; values are provided
// when adding a session, after the implicit session id and host labels.
// ConstLabels is meant for labels with values constant for the whole
// process. The error callback receives collection-time notes.
func NewCollector(
	prefix string,
	sessionLabels []string,
	constLabels prometheus.Labels,
	errorLoggingCallback func(error),
) *Collector {
	c := Collector{
		sessions: make(map[*lufo.Device][]string),
		logger:   errorLoggingCallback,
	}
	c.addMetrics(prefix, sessionLabels, constLabels)
	return &c
}

func (c *Collector) addMetrics(prefix string, sessionLabels []string, constLabels prometheus.Labels) {
	labels := append([]string{"session", "host"}, sessionLabels...)

	counter := func(name, help string, value func(session.CounterValues) uint64) info {
		desc := prometheus.NewDesc(prefix+name, help, labels, constLabels)
		return info{
			description: desc,
			supplier: func(v session.CounterValues, labelValues []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(desc,
					prometheus.CounterValue, float64(value(v)), labelValues...)
			},
		}
	}

	c.infos = []info{
		counter("frames_out_total", "Output frames written to the device.",
			func(v session.CounterValues) uint64 { return v.FramesOut }),
		counter("status_requests_total", "Status exchanges completed.",
			func(v session.CounterValues) uint64 { return v.StatusReqs }),
		counter("reconnects_total", "Transparent output reconnects after idle closes.",
			func(v session.CounterValues) uint64 { return v.Reconnects }),
		counter("exchanges_total", "Management command exchanges completed.",
			func(v session.CounterValues) uint64 { return v.Exchanges }),
		counter("at_errors_total", "Management exchanges denied by the device.",
			func(v session.CounterValues) uint64 { return v.ATErrors }),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, info := range c.infos {
		descs <- info.description
	}
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for d, labelValues := range c.sessions {
		if d.Dead() {
			c.logger(fmt.Errorf("session %s to %s dead; dropping from collection", d.ID(), d.Host()))
			delete(c.sessions, d)
			continue
		}

		counters := d.Counters()
		for _, info := range c.infos {
			metrics <- info.supplier(counters, labelValues)
		}
	}
}

// Add registers a session with its label values.
func (c *Collector) Add(d *lufo.Device, labelValues []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[d] = append([]string{d.ID(), d.Host()}, labelValues...)
}

// Remove deregisters a session.
func (c *Collector) Remove(d *lufo.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, d)
}
