package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures metric const labels.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes billing instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	trackingsCreated *prometheus.CounterVec
	invoicesCreated  *prometheus.CounterVec
	batchSkipped     *prometheus.CounterVec
	dunningAdvanced  *prometheus.CounterVec
	tierMisses       *prometheus.CounterVec
}

// New registers the billing instruments on registerer.
func New(cfg Config, registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &Metrics{
		trackingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_trackings_created_total",
			Help:        "Consumption trackings recorded by type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_invoices_created_total",
			Help:        "Invoices issued by type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		batchSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_invoice_batch_skipped_total",
			Help:        "Tracking numbers skipped by batch invoicing because no eligible tracking matched.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		dunningAdvanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_dunning_advanced_total",
			Help:        "Dunning escalations appended, split by whether a penalty applied.",
			ConstLabels: constLabels,
		}, []string{"penalty"}),
		tierMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_pricing_tier_miss_total",
			Help:        "Quantities that no pricing slice covered.",
			ConstLabels: constLabels,
		}, []string{"catalog", "segment"}),
	}

	registerer.MustRegister(
		m.trackingsCreated,
		m.invoicesCreated,
		m.batchSkipped,
		m.dunningAdvanced,
		m.tierMisses,
	)
	return m
}

func (m *Metrics) RecordTrackingsCreated(trackingType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.trackingsCreated.WithLabelValues(trackingType).Add(float64(n))
}

func (m *Metrics) RecordInvoicesCreated(invoiceType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invoicesCreated.WithLabelValues(invoiceType).Add(float64(n))
}

func (m *Metrics) RecordBatchSkipped(invoiceType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchSkipped.WithLabelValues(invoiceType).Add(float64(n))
}

func (m *Metrics) RecordDunningAdvanced(penalty bool) {
	if m == nil {
		return
	}
	label := "false"
	if penalty {
		label = "true"
	}
	m.dunningAdvanced.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordTierMiss(catalog, segment string) {
	if m == nil {
		return
	}
	m.tierMisses.WithLabelValues(catalog, segment).Inc()
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "utilitybilling"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}
