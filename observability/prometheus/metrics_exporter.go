package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-engine/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskSubmittedTotal  *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	taskDurationSeconds *prom.HistogramVec
	taskFaultTotal      *prom.CounterVec
	queueDepth          *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskengine"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	submittedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_submitted_total",
		Help:      "Total number of tasks admitted to the queue.",
	}, []string{"engine", "priority"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected submissions.",
	}, []string{"engine", "reason"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"engine", "worker"})
	faultVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_fault_total",
		Help:      "Total number of tasks that failed or panicked.",
	}, []string{"engine", "worker"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of queued tasks per lane.",
	}, []string{"engine", "priority"})

	var err error
	if submittedVec, err = registerCollector(reg, submittedVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if faultVec, err = registerCollector(reg, faultVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskSubmittedTotal:  submittedVec,
		taskRejectedTotal:   rejectedVec,
		taskDurationSeconds: durationVec,
		taskFaultTotal:      faultVec,
		queueDepth:          queueDepthVec,
	}, nil
}

// RecordTaskSubmitted counts an admitted task.
func (m *MetricsExporter) RecordTaskSubmitted(engine string, priority core.Priority) {
	if m == nil {
		return
	}
	m.taskSubmittedTotal.WithLabelValues(normalizeLabel(engine, "unknown"), priorityLabel(priority)).Inc()
}

// RecordTaskRejected counts a refused submission.
func (m *MetricsExporter) RecordTaskRejected(engine string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(engine, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(engine string, worker string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(engine, "unknown"), normalizeLabel(worker, "unknown")).Observe(duration.Seconds())
}

// RecordTaskFault counts a failed task.
func (m *MetricsExporter) RecordTaskFault(engine string, worker string) {
	if m == nil {
		return
	}
	m.taskFaultTotal.WithLabelValues(normalizeLabel(engine, "unknown"), normalizeLabel(worker, "unknown")).Inc()
}

// RecordQueueDepth records the depth of one lane.
func (m *MetricsExporter) RecordQueueDepth(engine string, priority core.Priority, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(engine, "unknown"), priorityLabel(priority)).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func priorityLabel(priority core.Priority) string {
	if !priority.Valid() {
		return "unknown"
	}
	return priority.String()
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
