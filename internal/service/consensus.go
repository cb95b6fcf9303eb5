package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dnswatch/internal/model"
	"dnswatch/internal/utils"
)

// ResolveConsensus queries every resolver concurrently and derives the value
// set to treat as ground truth for this check. The second return value is the
// number of resolvers whose query failed outright; callers compare it against
// len(resolvers) to recognize an all-resolver failure.
//
// This is a best-effort majority vote over a handful of voters, not a
// Byzantine-fault-tolerant protocol. Its output is a signal for human review.
func ResolveConsensus(ctx context.Context, domain string, recordType model.RecordType, resolvers []Resolver) (model.ConsensusResult, int) {
	per := make(model.ResolverAnswer, len(resolvers))
	failed := 0

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, r := range resolvers {
		wg.Add(1)
		go func(r Resolver) {
			defer wg.Done()
			values, err := r.Query(ctx, domain, recordType)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// A failed resolver casts an empty vote. It must never
				// abort the sibling queries or the whole domain check.
				utils.Log.Warn("resolver query failed",
					utils.Field("resolver", r.Name()),
					utils.Field("domain", domain),
					utils.Field("type", recordType),
					utils.Field("error", err.Error()))
				per[r.Name()] = []string{}
				failed++
				return
			}
			per[r.Name()] = values
		}(r)
	}
	wg.Wait()

	// Group non-empty answers by their order-insensitive representation.
	// Iterating the configured resolver slice (not the map) keeps grouping
	// and tie-breaking deterministic.
	type group struct {
		key    string
		values []string
		count  int
	}
	var groups []group
	nonEmpty := 0
	for _, r := range resolvers {
		values := per[r.Name()]
		if len(values) == 0 {
			continue
		}
		nonEmpty++
		key := sortedKey(values)
		matched := false
		for i := range groups {
			if groups[i].key == key {
				groups[i].count++
				matched = true
				break
			}
		}
		if !matched {
			groups = append(groups, group{key: key, values: values, count: 1})
		}
	}

	discrepancy := nonEmpty >= 2 && len(groups) > 1

	// Strictly-greater comparison: on a tie the first group encountered in
	// resolver iteration order wins.
	values := []string{}
	best := -1
	for i := range groups {
		if best < 0 || groups[i].count > groups[best].count {
			best = i
		}
	}
	if best >= 0 {
		values = groups[best].values
	}

	return model.ConsensusResult{
		Values:      values,
		Discrepancy: discrepancy,
		PerResolver: per,
	}, failed
}

func sortedKey(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\n")
}
