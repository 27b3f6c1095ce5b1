package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	jobsDispatchedTotal atomic.Uint64
	jobsStartedTotal    atomic.Uint64
	jobsCompletedTotal  atomic.Uint64
	jobsFailedTotal     atomic.Uint64
	jobsRetriedTotal    atomic.Uint64
	jobsTimedOutTotal   atomic.Uint64
	jobsCancelledTotal  atomic.Uint64
	jobsExhaustedTotal  atomic.Uint64

	queueReceivedTotal      atomic.Uint64
	queueUnrecoverableTotal atomic.Uint64

	assessmentsCompletedTotal atomic.Uint64
	assessmentsFailedTotal    atomic.Uint64

	deliverablesMu sync.Mutex
	deliverables   = map[string]uint64{}

	agentCallDuration = newHistogram([]float64{500, 1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncJobsDispatched adds n to the dispatched counter.
func IncJobsDispatched(n int) {
	if n > 0 {
		jobsDispatchedTotal.Add(uint64(n))
	}
}

func IncJobsStarted()   { jobsStartedTotal.Add(1) }
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }
func IncJobsFailed()    { jobsFailedTotal.Add(1) }
func IncJobsRetried()   { jobsRetriedTotal.Add(1) }
func IncJobsTimedOut()  { jobsTimedOutTotal.Add(1) }
func IncJobsExhausted() { jobsExhaustedTotal.Add(1) }

// IncJobsCancelled adds n to the cancelled counter.
func IncJobsCancelled(n int) {
	if n > 0 {
		jobsCancelledTotal.Add(uint64(n))
	}
}

func IncQueueReceived()      { queueReceivedTotal.Add(1) }
func IncQueueUnrecoverable() { queueUnrecoverableTotal.Add(1) }

func IncAssessmentsCompleted() { assessmentsCompletedTotal.Add(1) }
func IncAssessmentsFailed()    { assessmentsFailedTotal.Add(1) }

// IncDeliverableAssembled counts an assembled artifact for the given tier.
func IncDeliverableAssembled(tier string) {
	deliverablesMu.Lock()
	deliverables[tier]++
	deliverablesMu.Unlock()
}

// ObserveAgentCallMs records an agent invocation duration in milliseconds.
func ObserveAgentCallMs(value float64) {
	if value < 0 {
		value = 0
	}
	agentCallDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_jobs_dispatched_total", "Analysis jobs created in queued state", jobsDispatchedTotal.Load())
	writeCounter(&buf, "analysis_jobs_started_total", "Analysis jobs moved to processing", jobsStartedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Analysis jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Analysis jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_retried_total", "Analysis jobs re-dispatched after failure", jobsRetriedTotal.Load())
	writeCounter(&buf, "analysis_jobs_timed_out_total", "Analysis jobs failed by the processing timeout", jobsTimedOutTotal.Load())
	writeCounter(&buf, "analysis_jobs_cancelled_total", "Analysis jobs cancelled", jobsCancelledTotal.Load())
	writeCounter(&buf, "analysis_domains_exhausted_total", "Domains left incomplete after the retry budget", jobsExhaustedTotal.Load())
	writeCounter(&buf, "queue_messages_received_total", "Queue messages received by workers", queueReceivedTotal.Load())
	writeCounter(&buf, "queue_messages_unrecoverable_total", "Queue messages deleted as unprocessable", queueUnrecoverableTotal.Load())
	writeCounter(&buf, "assessments_completed_total", "Assessments that reached completed", assessmentsCompletedTotal.Load())
	writeCounter(&buf, "assessments_failed_total", "Assessments that reached failed", assessmentsFailedTotal.Load())
	writeLabeledCounter(&buf, "deliverables_assembled_total", "Deliverable artifacts written", "tier", snapshotDeliverables())
	writeHistogram(&buf, "agent_call_duration_ms", "Agent invocation duration in milliseconds", agentCallDuration.Snapshot())
	return buf.String()
}

func snapshotDeliverables() map[string]uint64 {
	deliverablesMu.Lock()
	defer deliverablesMu.Unlock()
	out := make(map[string]uint64, len(deliverables))
	for k, v := range deliverables {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
