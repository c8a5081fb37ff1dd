// Package metrics exposes fleet and HTTP counters in Prometheus text
// exposition format, without pulling in a client library.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type latencyKey struct {
	handler string
	method  string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu         sync.Mutex
	requests   map[requestKey]uint64
	latency    map[latencyKey]*histogram
	transfers  uint64
	rejections map[string]uint64
	rounds     uint64
}

var fleetCollector = &collector{
	requests:   make(map[requestKey]uint64),
	latency:    make(map[latencyKey]*histogram),
	rejections: make(map[string]uint64),
}

// ObserveHTTPRequest records one HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	fleetCollector.observeHTTP(handler, method, status, duration)
}

// CountTransfer records one executed transfer.
func CountTransfer() {
	fleetCollector.mu.Lock()
	fleetCollector.transfers++
	fleetCollector.mu.Unlock()
}

// CountRejection records one guardrails rejection, keyed by error code.
func CountRejection(code string) {
	fleetCollector.mu.Lock()
	fleetCollector.rejections[code]++
	fleetCollector.mu.Unlock()
}

// CountRound records one completed scheduling round.
func CountRound() {
	fleetCollector.mu.Lock()
	fleetCollector.rounds++
	fleetCollector.mu.Unlock()
}

func (c *collector) observeHTTP(handler, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqKey := requestKey{handler: handler, method: method, code: strconv.Itoa(status)}
	c.requests[reqKey]++

	latKey := latencyKey{handler: handler, method: method}
	hist := c.latency[latKey]
	if hist == nil {
		hist = newHistogram()
		c.latency[latKey] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
}

// Handler serves the current metric values.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, fleetCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var builder strings.Builder
	builder.Grow(1024)

	builder.WriteString("# HELP agentfleet_transfers_total Total number of executed token transfers.\n")
	builder.WriteString("# TYPE agentfleet_transfers_total counter\n")
	builder.WriteString(fmt.Sprintf("agentfleet_transfers_total %d\n", c.transfers))

	builder.WriteString("# HELP agentfleet_rounds_total Total number of completed scheduling rounds.\n")
	builder.WriteString("# TYPE agentfleet_rounds_total counter\n")
	builder.WriteString(fmt.Sprintf("agentfleet_rounds_total %d\n", c.rounds))

	builder.WriteString("# HELP agentfleet_policy_rejections_total Guardrails rejections by error code.\n")
	builder.WriteString("# TYPE agentfleet_policy_rejections_total counter\n")
	codes := make([]string, 0, len(c.rejections))
	for code := range c.rejections {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		builder.WriteString(fmt.Sprintf("agentfleet_policy_rejections_total{code=\"%s\"} %d\n",
			escape(code), c.rejections[code]))
	}

	type requestMetric struct {
		requestKey
		value uint64
	}
	reqs := make([]requestMetric, 0, len(c.requests))
	for key, value := range c.requests {
		reqs = append(reqs, requestMetric{requestKey: key, value: value})
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].handler == reqs[j].handler {
			if reqs[i].method == reqs[j].method {
				return reqs[i].code < reqs[j].code
			}
			return reqs[i].method < reqs[j].method
		}
		return reqs[i].handler < reqs[j].handler
	})

	builder.WriteString("# HELP agentfleet_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE agentfleet_http_requests_total counter\n")
	for _, metric := range reqs {
		builder.WriteString(fmt.Sprintf("agentfleet_http_requests_total{handler=\"%s\",method=\"%s\",code=\"%s\"} %d\n",
			escape(metric.handler), escape(metric.method), escape(metric.code), metric.value))
	}

	type latencyMetric struct {
		latencyKey
		buckets []float64
		counts  []uint64
		sum     float64
		count   uint64
	}
	lats := make([]latencyMetric, 0, len(c.latency))
	for key, hist := range c.latency {
		lats = append(lats, latencyMetric{
			latencyKey: key,
			buckets:    append([]float64(nil), hist.buckets...),
			counts:     append([]uint64(nil), hist.counts...),
			sum:        hist.sum,
			count:      hist.count,
		})
	}
	sort.Slice(lats, func(i, j int) bool {
		if lats[i].handler == lats[j].handler {
			return lats[i].method < lats[j].method
		}
		return lats[i].handler < lats[j].handler
	})

	builder.WriteString("# HELP agentfleet_http_request_duration_seconds HTTP request duration in seconds.\n")
	builder.WriteString("# TYPE agentfleet_http_request_duration_seconds histogram\n")
	for _, metric := range lats {
		for idx, bound := range metric.buckets {
			builder.WriteString(fmt.Sprintf("agentfleet_http_request_duration_seconds_bucket{handler=\"%s\",method=\"%s\",le=\"%s\"} %d\n",
				escape(metric.handler), escape(metric.method), formatFloat(bound), metric.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("agentfleet_http_request_duration_seconds_bucket{handler=\"%s\",method=\"%s\",le=\"+Inf\"} %d\n",
			escape(metric.handler), escape(metric.method), metric.count))
		builder.WriteString(fmt.Sprintf("agentfleet_http_request_duration_seconds_sum{handler=\"%s\",method=\"%s\"} %s\n",
			escape(metric.handler), escape(metric.method), formatFloat(metric.sum)))
		builder.WriteString(fmt.Sprintf("agentfleet_http_request_duration_seconds_count{handler=\"%s\",method=\"%s\"} %d\n",
			escape(metric.handler), escape(metric.method), metric.count))
	}

	return builder.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
