// Package search drives the best-first exploration of transformation space.
package search

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LyricZhao/DLMO/internal/analysis"
	"github.com/LyricZhao/DLMO/internal/report"
	"github.com/LyricZhao/DLMO/internal/rewrite"
	"github.com/LyricZhao/DLMO/internal/trace"
)

// Options bounds and parameterizes one search run.
type Options struct {
	Limit uint64 // device memory budget in bytes

	SearchLimit    int
	QueueSizeLimit int
	PrintFrequency int

	MemoryFactor         float64
	TimeFactor           float64
	ReconsiderRatio      float64
	TimeRequirementRatio float64

	Candidates analysis.Params
}

// DefaultOptions fills every bound with its default.
func DefaultOptions(limit uint64, seed int64) Options {
	return Options{
		Limit:                limit,
		SearchLimit:          SearchLimit,
		QueueSizeLimit:       QueueSizeLimit,
		PrintFrequency:       PrintFrequency,
		MemoryFactor:         MemoryFactor,
		TimeFactor:           TimeFactor,
		ReconsiderRatio:      ReconsiderRatio,
		TimeRequirementRatio: TimeRequirementRatio,
		Candidates:           analysis.DefaultParams(seed),
	}
}

// ProgressFunc observes the search every PrintFrequency pops.
type ProgressFunc func(iteration int, best *trace.Schedule, queueLen int)

// Result is what a finished search hands back. Search is best-effort: Best
// is the origin when no improvement was found, and exhausting the queue or
// the iteration budget is a normal way to stop.
type Result struct {
	Origin *trace.Schedule
	Best   *trace.Schedule

	Iterations int
	Satisfied  bool
	Elapsed    time.Duration
}

type Optimizer struct {
	opts     Options
	progress ProgressFunc
}

func New(opts Options) *Optimizer {
	return &Optimizer{opts: opts}
}

// OnProgress registers an observer called at every progress record.
func (o *Optimizer) OnProgress(fn ProgressFunc) { o.progress = fn }

// Optimize explores rewrites of origin until the limit is satisfied or a
// search bound is hit, returning the best schedule seen.
func (o *Optimizer) Optimize(origin *trace.Schedule) (*Result, error) {
	if err := analysis.Analyze(origin); err != nil {
		return nil, fmt.Errorf("origin schedule: %w", err)
	}
	cmp := Comparator{
		OriginTime:           origin.TotalTime,
		Limit:                o.opts.Limit,
		MemoryFactor:         o.opts.MemoryFactor,
		TimeFactor:           o.opts.TimeFactor,
		ReconsiderRatio:      o.opts.ReconsiderRatio,
		TimeRequirementRatio: o.opts.TimeRequirementRatio,
	}

	best := origin
	queue := newScheduleQueue(cmp)
	queue.push(origin)
	seen := map[uint64]struct{}{origin.Hash(): {}}

	logrus.WithFields(logrus.Fields{
		"peak":  trace.PrettyBytes(origin.PeakMemory),
		"time":  trace.PrettyNanos(origin.TotalTime),
		"limit": trace.PrettyBytes(o.opts.Limit),
	}).Info("starting back-tracing search from source")

	start := time.Now()
	count := 0
	queueFullWarned := false

	for queue.Len() > 0 {
		top := queue.pop()
		count++

		// The best may have improved since this entry was queued.
		if top == best || cmp.Considerable(best, top) {
			cands, err := analysis.Candidates(top, cmp.OriginTime, o.opts.Candidates)
			if err != nil {
				return nil, fmt.Errorf("analyzing schedule: %w", err)
			}
			for _, occ := range cands {
				child := rewrite.Apply(top, occ)
				if err := analysis.Analyze(child); err != nil {
					return nil, fmt.Errorf("rewritten schedule failed liveness: %w", err)
				}
				h := child.Hash()
				if _, dup := seen[h]; dup {
					continue
				}
				if cmp.Considerable(best, child) {
					if o.opts.QueueSizeLimit > 0 && queue.Len() >= o.opts.QueueSizeLimit {
						if !queueFullWarned {
							queueFullWarned = true
							report.Warningf("reaching search queue size limit %d", o.opts.QueueSizeLimit)
						}
						break
					}
					queue.push(child)
					seen[h] = struct{}{}
				}
				if cmp.Less(child, best) {
					best = child
				}
			}
			// Consumed by the expansion above; no reason to keep it around.
			top.Candidates = nil
		}

		if cmp.Satisfy(best) {
			logrus.Info("already satisfy requirement, stop searching")
			break
		}
		if count == o.opts.SearchLimit {
			report.Warningf("reach search limit %d, stop searching", o.opts.SearchLimit)
			break
		}
		if o.opts.PrintFrequency > 0 && count%o.opts.PrintFrequency == 0 {
			logrus.WithFields(logrus.Fields{
				"iteration": count,
				"best_peak": trace.PrettyBytes(best.PeakMemory),
				"best_time": trace.PrettyNanos(best.TotalTime),
				"queue":     queue.Len(),
			}).Info("search progress")
			if o.progress != nil {
				o.progress(count, best, queue.Len())
			}
		}
	}

	res := &Result{
		Origin:     origin,
		Best:       best,
		Iterations: count,
		Satisfied:  cmp.Satisfy(best),
		Elapsed:    time.Since(start),
	}
	logrus.WithFields(logrus.Fields{
		"searched":  res.Iterations,
		"elapsed":   res.Elapsed,
		"best_peak": trace.PrettyBytes(best.PeakMemory),
		"best_time": trace.PrettyNanos(best.TotalTime),
		"satisfied": res.Satisfied,
	}).Info("search finished")
	return res, nil
}
