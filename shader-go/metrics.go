package shader_go

import (
	"fmt"
	"time"
)

// / The primary interface to metrics.  Use
// /   defer METRIC_RECORD("foobar")()
// / at the top of a function to get timing stats recorded for each call.
func METRIC_RECORD(name string) func() {
	if GMetrics == nil {
		return func() {}
	}
	metric := GMetrics.NewMetric(name)
	start := HighResTimer()
	return func() {
		metric.count++
		metric.sum += HighResTimer() - start
	}
}

var GMetrics *Metrics = nil

type Metric struct {
	name string
	/// Number of times we've hit the code path.
	count int
	/// Total time (in nanoseconds) we've spent on the code path.
	sum int64
}

type Metrics struct {
	metrics_ []*Metric
	byName_  map[string]*Metric
}

func NewMetrics() *Metrics {
	ret := Metrics{}
	ret.byName_ = map[string]*Metric{}
	return &ret
}

// / Find or create the metric with the given name. A metric is shared by
// / every call site using the same name.
func (this *Metrics) NewMetric(name string) *Metric {
	if this.byName_ == nil {
		this.byName_ = map[string]*Metric{}
	}
	if m, ok := this.byName_[name]; ok {
		return m
	}
	metric := Metric{name: name}
	this.metrics_ = append(this.metrics_, &metric)
	this.byName_[name] = &metric
	return &metric
}

// / Print a summary report to stdout.
func (this *Metrics) Report() {
	width := 0
	for _, i := range this.metrics_ {
		width = max(len(i.name), width)
	}

	fmt.Printf("%-*s\t%-6s\t%-9s\t%s\n", width,
		"metric", "count", "avg (us)", "total (ms)")
	for _, metric := range this.metrics_ {
		micros := TimerToMicros(metric.sum)
		total := float64(micros) / float64(1000)
		avg := 0.0
		if metric.count > 0 {
			avg = float64(micros) / float64(metric.count)
		}
		fmt.Printf("%-*s\t%-6d\t%-8.1f\t%.1f\n", width, metric.name, metric.count, avg, total)
	}
}

// / Compute a platform-specific high-res timer value that fits into an int64.
func HighResTimer() int64 {
	return time.Now().UnixNano()
}

func TimerToMicros(dt int64) int64 {
	return time.Duration(dt).Microseconds()
}

