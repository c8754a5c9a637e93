package transport

import "github.com/prometheus/client_golang/prometheus"

// Metric collectors for the cloud-backed page stores, mirroring the
// teacher's per-backend CounterVec pattern (persistent/s3.go's S3Ops,
// persistent/gcs.go's GCSOps, persistent/b2.go's B2Ops).
var (
	s3Ops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathoram_s3_ops",
			Help: "The number of operations against an S3-backed channel.",
		},
		[]string{"operation", "success"},
	)

	gcsOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathoram_gcs_ops",
			Help: "The number of operations against a GCS-backed channel.",
		},
		[]string{"operation", "success"},
	)

	b2Ops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathoram_b2_ops",
			Help: "The number of operations against a B2-backed channel.",
		},
		[]string{"operation", "success"},
	)

	// ChannelReads counts batched ReadBuckets calls, labeled by backend.
	ChannelReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathoram_channel_reads_total",
			Help: "The number of batched ReadBuckets calls made by an ObjectChannel.",
		},
		[]string{"backend"},
	)

	// ChannelWrites counts batched WriteBuckets calls, labeled by backend.
	ChannelWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathoram_channel_writes_total",
			Help: "The number of batched WriteBuckets calls made by an ObjectChannel.",
		},
		[]string{"backend"},
	)

	// Collectors lists every collector this package registers, for callers
	// that want to prometheus.Register them all at once (see
	// cmd/pathoram-bench/main.go).
	Collectors = []prometheus.Collector{s3Ops, gcsOps, b2Ops, ChannelReads, ChannelWrites}
)
