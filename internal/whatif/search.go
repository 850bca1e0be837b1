package whatif

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/money"
)

// DefaultTopK is the number of scenarios returned by a search
const DefaultTopK = 3

// Searcher evaluates the scenario grid and ranks the outcomes
type Searcher struct {
	eval    *Evaluator
	src     Source
	workers int
	logger  *zap.Logger
}

// NewSearcher creates a searcher. workers <= 0 uses GOMAXPROCS.
func NewSearcher(eval *Evaluator, src Source, workers int, logger *zap.Logger) *Searcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{eval: eval, src: src, workers: workers, logger: logger}
}

// Candidates returns the default grid over the current catalogs
func (s *Searcher) Candidates() []Scenario {
	return Grid(DefaultAxes(s.src.Plans(), s.src.AddOns())...)
}

// Top evaluates every candidate and returns the k cheapest by new total,
// grid order breaking ties. Candidates that fail to evaluate are skipped.
// A missing bill for the period is returned as an error.
func (s *Searcher) Top(ctx context.Context, userID int, period string, k int) ([]Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	current, err := s.eval.CurrentTotal(userID, period)
	if err != nil {
		return nil, err
	}

	candidates := s.Candidates()
	slots := make([]*Result, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, sc := range candidates {
		i, sc := i, sc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.eval.Evaluate(userID, period, sc)
			if err != nil {
				skipped := &billerr.ComputationSkipped{Candidate: sc.String(), Err: err}
				s.logger.Debug("Skipping scenario candidate",
					zap.Int("user_id", userID),
					zap.String("period", period),
					zap.Error(skipped),
				)
				return nil
			}
			slots[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].NewTotal < results[j].NewTotal
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].CurrentTotal = money.Cents(current)
		results[i].Saving = money.Cents(current - results[i].NewTotal)
	}

	s.logger.Debug("Scenario search complete",
		zap.Int("user_id", userID),
		zap.String("period", period),
		zap.Int("candidates", len(candidates)),
		zap.Int("evaluated", countNonNil(slots)),
		zap.Int("returned", len(results)),
	)

	return results, nil
}

func countNonNil(slots []*Result) int {
	n := 0
	for _, r := range slots {
		if r != nil {
			n++
		}
	}
	return n
}
