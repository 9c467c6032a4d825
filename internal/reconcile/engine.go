package reconcile

import (
	"github.com/invario/invario/internal/domain"
)

// Engine reconciles a source transaction set against a target set
// using a pluggable matching strategy. Matching is one-to-one, keyed
// on transaction ID, with field comparison delegated to the matcher.
type Engine struct {
	matcher TransactionMatcher
}

// NewEngine creates an engine. A nil matcher defaults to ExactMatcher.
func NewEngine(matcher TransactionMatcher) *Engine {
	if matcher == nil {
		matcher = ExactMatcher{}
	}
	return &Engine{matcher: matcher}
}

// Reconcile compares source transactions against targets.
//
// Targets are indexed by ID. Every source either finds its target and
// is compared, or is reported unmatched_source. Targets never touched
// by a source are reported unmatched_target, in target order.
func (e *Engine) Reconcile(sources, targets []domain.Transaction) domain.ReconciliationReport {
	results := make([]domain.ReconciliationResult, 0, len(sources))

	targetByID := make(map[string]domain.Transaction, len(targets))
	for _, tx := range targets {
		targetByID[tx.ID.String()] = tx
	}
	matchedIDs := make(map[string]struct{}, len(sources))

	for _, source := range sources {
		id := source.ID.String()
		target, ok := targetByID[id]
		if !ok {
			results = append(results, domain.ReconciliationResult{
				Status:     domain.StatusUnmatchedSource,
				SourceHash: source.ContentHash(),
				Message:    "transaction not found in target set",
			})
			continue
		}
		results = append(results, e.matcher.Compare(source, target))
		matchedIDs[id] = struct{}{}
	}

	for _, target := range targets {
		if _, ok := matchedIDs[target.ID.String()]; ok {
			continue
		}
		results = append(results, domain.ReconciliationResult{
			Status:     domain.StatusUnmatchedTarget,
			TargetHash: target.ContentHash(),
			Message:    "transaction in target but not in source",
		})
	}

	return generateReport(results)
}
