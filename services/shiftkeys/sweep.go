package shiftkeys

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	MinLookback = time.Hour
	MaxLookback = 168 * time.Hour
)

// ClampLookback bounds a sweep's lookback window to [1h, 168h].
func ClampLookback(lookback time.Duration) time.Duration {
	if lookback < MinLookback {
		return MinLookback
	}
	if lookback > MaxLookback {
		return MaxLookback
	}
	return lookback
}

// Sweep runs one complete discovery-and-redemption pass: query every
// source for the lookback window, dedup the codes, redeem each unique
// code against every account, and summarize.
//
// A sweep that finds nothing is a success with an empty item list.
func (s Service) Sweep(ctx context.Context, lookback time.Duration) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()

	lookback = ClampLookback(lookback)
	now := time.Now().UTC()
	since := now.Add(-lookback)
	span.SetAttributes(attribute.String("since", since.Format(time.RFC3339)))

	candidates := s.collectCandidates(ctx, since)

	var items []SweepItem
	for _, group := range groupCandidates(candidates) {
		results, err := s.Redeem(ctx, group.Code)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "redemption pass failed")
			return SweepResult{}, err
		}
		group.Results = results
		items = append(items, group)
	}

	summary := SweepSummary{TotalKeys: len(items)}
	for _, item := range items {
		summary.TotalRedemptionAttempts += len(item.Results)
		for _, result := range item.Results {
			if result.Success {
				summary.TotalSucceeded++
			} else {
				summary.TotalFailed++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("total_keys", summary.TotalKeys),
		attribute.Int("total_succeeded", summary.TotalSucceeded),
		attribute.Int("total_failed", summary.TotalFailed),
	)

	return SweepResult{
		Since:     since,
		ScannedAt: now,
		Summary:   summary,
		Items:     items,
	}, nil
}

// collectCandidates fans out to every source concurrently. Sources
// are independent and side-effect-free, and a broken one should not
// take the whole sweep down with it, so failures are logged and
// skipped.
func (s Service) collectCandidates(ctx context.Context, since time.Time) []KeyCandidate {
	ctx, span := tracer.Start(ctx, "collectCandidates")
	defer span.End()

	var candidates []KeyCandidate
	lock := sync.Mutex{}
	wg := sync.WaitGroup{}

	for _, source := range s.sources {
		wg.Add(1)
		go func(source KeySource) {
			defer wg.Done()

			found, err := source.GetKeys(ctx, since)
			if err != nil {
				slog.WarnContext(ctx, "key source failed, skipping", "source", source.Name(), "err", err)
				span.RecordError(err)
				return
			}

			lock.Lock()
			defer lock.Unlock()
			candidates = append(candidates, found...)
		}(source)
	}

	wg.Wait()

	span.SetAttributes(attribute.Int("candidate_count", len(candidates)))
	return candidates
}

// groupCandidates dedups candidates into one item per normalized code
// (trimmed, upper-cased). Source names dedup case-insensitively with
// the first-seen casing kept, and end up sorted ascending
// case-insensitively. Blank codes are dropped entirely. Items come
// back sorted by code so sweep output is deterministic regardless of
// source completion order.
func groupCandidates(candidates []KeyCandidate) []SweepItem {
	type itemAccumulator struct {
		sources   []string
		seenLower map[string]bool
	}

	byCode := map[string]*itemAccumulator{}
	for _, candidate := range candidates {
		code := strings.ToUpper(strings.TrimSpace(candidate.Code))
		if code == "" {
			continue
		}

		item := byCode[code]
		if item == nil {
			item = &itemAccumulator{seenLower: map[string]bool{}}
			byCode[code] = item
		}

		sourceKey := strings.ToLower(candidate.SourceName)
		if !item.seenLower[sourceKey] {
			item.seenLower[sourceKey] = true
			item.sources = append(item.sources, candidate.SourceName)
		}
	}

	items := make([]SweepItem, 0, len(byCode))
	for code, item := range byCode {
		slices.SortFunc(item.sources, func(a, b string) int {
			return strings.Compare(strings.ToLower(a), strings.ToLower(b))
		})
		items = append(items, SweepItem{
			Code:    code,
			Sources: item.sources,
		})
	}
	slices.SortFunc(items, func(a, b SweepItem) int {
		return strings.Compare(a.Code, b.Code)
	})
	return items
}
