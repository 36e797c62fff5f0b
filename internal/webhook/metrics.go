package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed_total",
		Help: "Webhook submissions processed, by outcome.",
	}, []string{"outcome"})

	attachmentsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_attachments_resolved_total",
		Help: "Attachment field resolutions, by result (stored or fallback).",
	}, []string{"result"})

	lookupDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_crm_lookup_downgrades_total",
		Help: "CRM lookup errors downgraded to not-found.",
	})

	contactOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_crm_contacts_total",
		Help: "Contact upserts, by operation (created or updated).",
	}, []string{"op"})

	dealOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_crm_deals_total",
		Help: "Deal upserts, by operation (created or updated).",
	}, []string{"op"})
)
