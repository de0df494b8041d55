package output

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/reqflow/packages/recorder"
)

// Latencies are tracked in microseconds from 1us to 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

type Latency struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

func (l Latency) String() string {
	if l.Count == 0 {
		return "no responses"
	}
	return fmt.Sprintf("min %v, p50 %v, p95 %v, p99 %v, max %v (%d responses)",
		l.Min, l.P50, l.P95, l.P99, l.Max, l.Count)
}

// SummarizeLatency computes percentiles with three significant digits.
func SummarizeLatency(samples []time.Duration) Latency {
	if len(samples) == 0 {
		return Latency{}
	}
	h := hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
	for _, d := range samples {
		us := min(max(d.Microseconds(), minLatencyUs), maxLatencyUs)
		_ = h.RecordValue(us)
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Latency{
		Count: len(samples),
		Min:   us(h.Min()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   us(h.ValueAtQuantile(50)),
		P95:   us(h.ValueAtQuantile(95)),
		P99:   us(h.ValueAtQuantile(99)),
		Max:   us(h.Max()),
	}
}

// EntryLatencies returns the response time of every entry that got one.
func EntryLatencies(entries []recorder.Entry) []time.Duration {
	out := make([]time.Duration, 0, len(entries))
	for _, e := range entries {
		if e.Response != nil {
			out = append(out, time.Duration(e.Response.Time*float64(time.Second)))
		}
	}
	return out
}
