// internal/pipeline/stats.go
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readsCorrected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readcorr_reads_corrected_total",
		Help: "Reads fully ingested by the correction pipeline.",
	})
	earlyReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readcorr_reads_early_total",
		Help: "Reads whose windows were all trivial and bypassed inference.",
	})
	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readcorr_messages_dropped_total",
		Help: "Input messages dropped for malformed or duplicate content.",
	})
	windowsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readcorr_windows_decoded_total",
		Help: "Inferred windows decoded back into consensus strings.",
	})
)
