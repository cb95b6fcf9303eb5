package service

import (
	"context"
	"fmt"
	"testing"

	"dnswatch/internal/model"
	"dnswatch/internal/utils"
)

func init() {
	utils.TestInitLogger()
}

type stubResolver struct {
	name   string
	values []string
	err    error
}

func (s stubResolver) Name() string { return s.name }

func (s stubResolver) Query(ctx context.Context, domain string, recordType model.RecordType) ([]string, error) {
	return s.values, s.err
}

func TestResolveConsensus_Agreement(t *testing.T) {
	t.Parallel()
	resolvers := []Resolver{
		stubResolver{name: "r1", values: []string{"1.1.1.1", "2.2.2.2"}},
		stubResolver{name: "r2", values: []string{"2.2.2.2", "1.1.1.1"}},
	}

	res, failed := ResolveConsensus(context.Background(), "example.com", model.RecordTypeA, resolvers)
	if failed != 0 {
		t.Errorf("Expected 0 failures, got %d", failed)
	}
	if res.Discrepancy {
		t.Error("Answer order must not produce a discrepancy")
	}
	if !model.EqualValueSets(res.Values, []string{"1.1.1.1", "2.2.2.2"}) {
		t.Errorf("Unexpected consensus values: %v", res.Values)
	}
}

func TestResolveConsensus_Discrepancy(t *testing.T) {
	t.Parallel()
	resolvers := []Resolver{
		stubResolver{name: "r1", values: []string{"1.1.1.1"}},
		stubResolver{name: "r2", values: []string{"6.6.6.6"}},
		stubResolver{name: "r3", values: []string{"1.1.1.1"}},
	}

	res, _ := ResolveConsensus(context.Background(), "example.com", model.RecordTypeA, resolvers)
	if !res.Discrepancy {
		t.Error("Differing answers must flag a discrepancy")
	}
	if !model.EqualValueSets(res.Values, []string{"1.1.1.1"}) {
		t.Errorf("Majority group should win, got %v", res.Values)
	}
}

func TestResolveConsensus_TieBreakIsDeterministic(t *testing.T) {
	t.Parallel()
	resolvers := []Resolver{
		stubResolver{name: "r1", values: []string{"1.1.1.1"}},
		stubResolver{name: "r2", values: []string{"6.6.6.6"}},
	}

	for i := 0; i < 20; i++ {
		res, _ := ResolveConsensus(context.Background(), "example.com", model.RecordTypeA, resolvers)
		if !model.EqualValueSets(res.Values, []string{"1.1.1.1"}) {
			t.Fatalf("Run %d: tie must go to the first resolver's group, got %v", i, res.Values)
		}
	}
}

func TestResolveConsensus_OneResolverFails(t *testing.T) {
	t.Parallel()
	resolvers := []Resolver{
		stubResolver{name: "r1", values: []string{"1.1.1.1"}},
		stubResolver{name: "r2", err: fmt.Errorf("timeout")},
		stubResolver{name: "r3", values: []string{"1.1.1.1"}},
	}

	res, failed := ResolveConsensus(context.Background(), "example.com", model.RecordTypeA, resolvers)
	if failed != 1 {
		t.Errorf("Expected 1 failure, got %d", failed)
	}
	if res.Discrepancy {
		t.Error("A failed resolver must not count as disagreement")
	}
	if !model.EqualValueSets(res.Values, []string{"1.1.1.1"}) {
		t.Errorf("Agreeing resolvers' set should win: %v", res.Values)
	}
	if vals, ok := res.PerResolver["r2"]; !ok || len(vals) != 0 {
		t.Errorf("Failed resolver must appear with an empty vote, got %v", res.PerResolver)
	}
}

func TestResolveConsensus_SingleNonEmptyIsNotDiscrepancy(t *testing.T) {
	t.Parallel()
	resolvers := []Resolver{
		stubResolver{name: "r1", values: []string{"1.1.1.1"}},
		stubResolver{name: "r2"},
	}

	res, _ := ResolveConsensus(context.Background(), "example.com", model.RecordTypeA, resolvers)
	if res.Discrepancy {
		t.Error("Fewer than two non-empty answers can never be a discrepancy")
	}
	if !model.EqualValueSets(res.Values, []string{"1.1.1.1"}) {
		t.Errorf("Unexpected values: %v", res.Values)
	}
}

func TestResolveConsensus_AllEmpty(t *testing.T) {
	t.Parallel()
	resolvers := []Resolver{
		stubResolver{name: "r1", err: fmt.Errorf("down")},
		stubResolver{name: "r2", err: fmt.Errorf("down")},
	}

	res, failed := ResolveConsensus(context.Background(), "example.com", model.RecordTypeA, resolvers)
	if failed != 2 {
		t.Errorf("Expected 2 failures, got %d", failed)
	}
	if len(res.Values) != 0 {
		t.Errorf("All-empty input must yield empty values, got %v", res.Values)
	}
	if res.Discrepancy {
		t.Error("All-empty input is not a discrepancy")
	}
}
