package metrics

import (
	"sync"
	"time"
)

// MetricsCollector provides a centralized way to collect and retrieve metrics
type MetricsCollector struct {
	mutex               sync.RWMutex
	counters            map[string]int64
	gauges              map[string]float64
	requestLatencies    map[string][]time.Duration
	requestCounts       map[string]int64
	transitionCounts    map[string]int64
	transitionLatencies map[string][]time.Duration
	messageBusCounts    map[string]int64
	messageBusLatencies map[string][]time.Duration
	databaseQueryCounts map[string]int64
	databaseLatencies   map[string][]time.Duration
	errorCounts         map[string]int64
	severityCounts      map[string]int64
	startTime           time.Time
	maxHistogramSamples int
}

// Counter metrics
const (
	CounterHTTPRequests        = "http_requests_total"
	CounterHTTPRequestsSuccess = "http_requests_success_total"
	CounterHTTPRequestsError   = "http_requests_error_total"
	CounterJourneysRegistered  = "journeys_registered_total"
	CounterJourneysCompleted   = "journeys_completed_total"
	CounterJourneysExited      = "journeys_exited_total"
	CounterTransshipments      = "transshipments_total"
	CounterWeightReadings      = "weight_readings_total"
	CounterApprovalsRequested  = "weight_approvals_requested_total"
	CounterApprovalsResolved   = "weight_approvals_resolved_total"
	CounterUpdateRetries       = "store_update_retries_total"
	CounterUpdateConflicts     = "store_update_conflicts_total"
	CounterMessagesSent        = "messages_sent_total"
	CounterMessagesReceived    = "messages_received_total"
	CounterMessagesProcessed   = "messages_processed_total"
	CounterMessagesError       = "messages_error_total"
	CounterDBQueriesTotal      = "db_queries_total"
	CounterDBQueriesError      = "db_queries_error_total"
	CounterDocumentsIndexed    = "documents_indexed_total"
	CounterCacheHits           = "cache_hits_total"
	CounterCacheMisses         = "cache_misses_total"
	CounterErrorsTotal         = "errors_total"
)

// Gauge metrics
const (
	GaugeTrucksInside     = "trucks_inside"
	GaugePendingApprovals = "pending_approvals"
)

// Transition types for journey metrics
const (
	TransitionRegister       = "register"
	TransitionGate           = "gate"
	TransitionInside         = "inside"
	TransitionComplete       = "complete"
	TransitionExit           = "exit"
	TransitionWeightReading  = "weight_reading"
	TransitionInvoice        = "invoice"
	TransitionApproval       = "approval"
	TransitionWeightComplete = "weight_complete"
	TransitionReplace        = "replace"
)

// Database query types
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
)

// Message bus operations
const (
	MessageBusOperationSend     = "send"
	MessageBusOperationReceive  = "receive"
	MessageBusOperationComplete = "complete"
	MessageBusOperationReject   = "reject"
)

// Error types
const (
	ErrorTypeHTTP       = "http"
	ErrorTypeValidation = "validation"
	ErrorTypeDatabase   = "database"
	ErrorTypeMessageBus = "message_bus"
	ErrorTypeSearch     = "search"
	ErrorTypeInternal   = "internal"
)

// HTTP paths
const (
	HTTPPathJourneys  = "/api/v1/journeys"
	HTTPPathJourney   = "/api/v1/journeys/{id}"
	HTTPPathTATReport = "/api/v1/reports/tat"
	HTTPPathMetrics   = "/metrics"
	HTTPPathHealth    = "/health"
)

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:            make(map[string]int64),
		gauges:              make(map[string]float64),
		requestLatencies:    make(map[string][]time.Duration),
		requestCounts:       make(map[string]int64),
		transitionCounts:    make(map[string]int64),
		transitionLatencies: make(map[string][]time.Duration),
		messageBusCounts:    make(map[string]int64),
		messageBusLatencies: make(map[string][]time.Duration),
		databaseQueryCounts: make(map[string]int64),
		databaseLatencies:   make(map[string][]time.Duration),
		errorCounts:         make(map[string]int64),
		severityCounts:      make(map[string]int64),
		startTime:           time.Now(),
		maxHistogramSamples: 1000,
	}
}

// appendSample keeps at most maxHistogramSamples per key. Caller holds the lock.
func (m *MetricsCollector) appendSample(series map[string][]time.Duration, key string, latency time.Duration) {
	latencies, ok := series[key]
	if !ok {
		latencies = make([]time.Duration, 0, m.maxHistogramSamples)
	}
	if len(latencies) >= m.maxHistogramSamples {
		// Remove the oldest sample
		latencies = latencies[1:]
	}
	series[key] = append(latencies, latency)
}

// IncrementCounter increments a counter by the given value
func (m *MetricsCollector) IncrementCounter(name string, value int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge to the given value
func (m *MetricsCollector) SetGauge(name string, value float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[name] = value
}

// AddGauge moves a gauge by delta
func (m *MetricsCollector) AddGauge(name string, delta float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[name] += delta
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *MetricsCollector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterHTTPRequests]++
	m.requestCounts[path]++
	m.appendSample(m.requestLatencies, path, latency)

	// 4xx are client mistakes; only 5xx count against health
	switch {
	case statusCode >= 200 && statusCode < 400:
		m.counters[CounterHTTPRequestsSuccess]++
	case statusCode >= 500:
		m.counters[CounterHTTPRequestsError]++
		m.errorCounts[ErrorTypeHTTP]++
	}
}

// RecordTransition records a committed journey mutation
func (m *MetricsCollector) RecordTransition(transition string, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.transitionCounts[transition]++

	switch transition {
	case TransitionRegister:
		m.counters[CounterJourneysRegistered]++
	case TransitionComplete:
		m.counters[CounterJourneysCompleted]++
	case TransitionExit:
		m.counters[CounterJourneysExited]++
	case TransitionReplace:
		m.counters[CounterTransshipments]++
	case TransitionWeightReading:
		m.counters[CounterWeightReadings]++
	case TransitionApproval:
		m.counters[CounterApprovalsResolved]++
	}

	m.appendSample(m.transitionLatencies, transition, latency)
}

// RecordSeverity counts a TAT evaluation by severity
func (m *MetricsCollector) RecordSeverity(severity string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.severityCounts[severity]++
}

// RecordMessageBusOperation records metrics for a message bus operation
func (m *MetricsCollector) RecordMessageBusOperation(operation string, success bool, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.messageBusCounts[operation]++

	switch operation {
	case MessageBusOperationSend:
		m.counters[CounterMessagesSent]++
	case MessageBusOperationReceive:
		m.counters[CounterMessagesReceived]++
	case MessageBusOperationComplete:
		m.counters[CounterMessagesProcessed]++
	}

	if !success {
		m.counters[CounterMessagesError]++
		m.errorCounts[ErrorTypeMessageBus]++
	}

	m.appendSample(m.messageBusLatencies, operation, latency)
}

// RecordDatabaseQuery records metrics for a database query
func (m *MetricsCollector) RecordDatabaseQuery(queryType string, success bool, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.databaseQueryCounts[queryType]++
	m.counters[CounterDBQueriesTotal]++

	if !success {
		m.counters[CounterDBQueriesError]++
		m.errorCounts[ErrorTypeDatabase]++
	}

	m.appendSample(m.databaseLatencies, queryType, latency)
}

// RecordError records an error of the given type
func (m *MetricsCollector) RecordError(errorType string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.errorCounts[errorType]++
	m.counters[CounterErrorsTotal]++
}

// Counter returns the current value of a counter
func (m *MetricsCollector) Counter(name string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.counters[name]
}

func averages(series map[string][]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(series))
	for key, latencies := range series {
		if len(latencies) == 0 {
			continue
		}
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		out[key] = float64(sum.Milliseconds()) / float64(len(latencies))
	}
	return out
}

func copyInts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GetMetrics returns all collected metrics in a structured format
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.startTime).Seconds(),
		"counters":                 copyInts(m.counters),
		"gauges":                   gauges,
		"request_counts":           copyInts(m.requestCounts),
		"request_latencies_ms":     averages(m.requestLatencies),
		"transition_counts":        copyInts(m.transitionCounts),
		"transition_latencies_ms":  averages(m.transitionLatencies),
		"tat_severity_counts":      copyInts(m.severityCounts),
		"message_bus_counts":       copyInts(m.messageBusCounts),
		"message_bus_latencies_ms": averages(m.messageBusLatencies),
		"database_query_counts":    copyInts(m.databaseQueryCounts),
		"database_latencies_ms":    averages(m.databaseLatencies),
		"error_counts":             copyInts(m.errorCounts),
	}
}

// GetHealthStatus returns a simple health status based on metrics
func (m *MetricsCollector) GetHealthStatus() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	healthy := true

	errorRate := 0.0
	totalRequests := m.counters[CounterHTTPRequests]
	if totalRequests > 0 {
		errorRate = float64(m.counters[CounterHTTPRequestsError]) / float64(totalRequests)
	}

	const errorRateThreshold = 0.05
	if errorRate > errorRateThreshold {
		healthy = false
	}

	return map[string]interface{}{
		"status": map[string]interface{}{
			"healthy":        healthy,
			"uptime_seconds": time.Since(m.startTime).Seconds(),
		},
		"metrics": map[string]interface{}{
			"total_requests":     totalRequests,
			"error_rate":         errorRate,
			"journeys_completed": m.counters[CounterJourneysCompleted],
			"journeys_exited":    m.counters[CounterJourneysExited],
			"update_conflicts":   m.counters[CounterUpdateConflicts],
			"trucks_inside":      m.gauges[GaugeTrucksInside],
			"pending_approvals":  m.gauges[GaugePendingApprovals],
		},
	}
}

// Global metrics collector instance
var globalCollector *MetricsCollector
var once sync.Once

// GetMetricsCollector returns the global metrics collector instance
func GetMetricsCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = NewMetricsCollector()
	})
	return globalCollector
}
