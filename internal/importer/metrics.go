package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - Prometheus-метрики конвейера импорта
type Metrics struct {
	files           *prometheus.CounterVec
	duration        prometheus.Histogram
	assets          *prometheus.CounterVec
	archiveFailures prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil - без регистрации)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tmx",
			Name:      "import_files_total",
			Help:      "Обработанные исходные файлы по результату.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tmx",
			Name:      "import_duration_seconds",
			Help:      "Длительность импорта одного файла.",
			Buckets:   prometheus.DefBuckets,
		}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tmx",
			Name:      "assets_total",
			Help:      "Созданные и обновлённые ассеты.",
		}, []string{"op"}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tmx",
			Name:      "archive_failures_total",
			Help:      "Ошибки архивирования или удаления исходных файлов.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.files, m.duration, m.assets, m.archiveFailures)
	}
	return m
}

func (m *Metrics) observe(res FileResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(res.resultLabel()).Inc()
	if res.Outcome != OutcomeSkipped {
		m.duration.Observe(elapsed.Seconds())
	}
	switch res.Outcome {
	case OutcomeCreated:
		m.assets.WithLabelValues("created").Inc()
	case OutcomeMerged:
		m.assets.WithLabelValues("merged").Inc()
	}
	if res.ArchiveFailed() {
		m.archiveFailures.Inc()
	}
}
