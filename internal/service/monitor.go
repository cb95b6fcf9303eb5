package service

import (
	"context"
	"sync"
	"time"

	"dnswatch/internal/model"
	"dnswatch/internal/notify"
	"dnswatch/internal/storage"
	"dnswatch/internal/utils"
)

const allResolversFailed = "all resolvers failed"

// MonitorService runs the full check pipeline for watched domains: resolver
// consensus, change detection against stored history, IP intelligence on
// changed address sets, and risk scoring.
type MonitorService struct {
	Resolvers []Resolver
	Detector  *ChangeDetector
	Intel     *IntelService
	Notifier  notify.Notifier

	// Resource-budget knobs; they trim work, never the algorithm.
	MaxConcurrentChecks int
	MaxDomainsPerCycle  int
	EnableIPAnalysis    bool
	EnableWhois         bool

	// Results is only written when the KV backend is the full redis store.
	Results *storage.Storage
}

func NewMonitorService(store storage.KV, resolvers []Resolver, intel *IntelService, notifier notify.Notifier) *MonitorService {
	m := &MonitorService{
		Resolvers:           resolvers,
		Detector:            NewChangeDetector(store),
		Intel:               intel,
		Notifier:            notifier,
		MaxConcurrentChecks: 10,
		EnableIPAnalysis:    true,
	}
	if full, ok := store.(*storage.Storage); ok {
		m.Results = full
	}
	return m
}

// CheckDomain runs one domain/record-type check end to end. It never panics
// or returns an error past this boundary: every failure mode lands in the
// Error field of the result so one domain cannot abort its siblings.
func (m *MonitorService) CheckDomain(ctx context.Context, spec model.DomainSpec) model.CheckResult {
	res := model.CheckResult{
		Domain:     spec.Domain,
		RecordType: spec.RecordType,
		ObservedAt: time.Now().UTC(),
	}
	if !spec.RecordType.Valid() {
		res.Error = "unsupported record type: " + string(spec.RecordType)
		return res
	}

	cons, failed := ResolveConsensus(ctx, spec.Domain, spec.RecordType, m.Resolvers)
	res.CurrentValues = cons.Values
	res.Discrepancy = cons.Discrepancy
	res.PerResolver = cons.PerResolver

	allFailed := len(m.Resolvers) > 0 && failed == len(m.Resolvers)

	prev, isFirst, hasChanged, err := m.Detector.Detect(ctx, spec.Domain, spec.RecordType, cons.Values, res.ObservedAt, allFailed)
	if err != nil {
		// History store failure is a hard failure for this domain only.
		res.Error = err.Error()
		return res
	}
	res.PreviousValues = prev
	res.IsFirstCheck = isFirst
	res.HasChanged = hasChanged

	if allFailed {
		// No data is itself worth flagging; do not pretend the domain is
		// quietly unchanged.
		res.Error = allResolversFailed
		res.HasChanged = true
		return res
	}

	if res.HasChanged && !res.IsFirstCheck {
		if spec.RecordType.IsAddress() && m.EnableIPAnalysis && m.Intel != nil {
			res.PreviousIPAnalysis = m.Intel.AnalyzeIPs(ctx, prev)
			res.CurrentIPAnalysis = m.Intel.AnalyzeIPs(ctx, cons.Values)
			risk := ScoreRisk(res.PreviousIPAnalysis, res.CurrentIPAnalysis)
			res.RiskAssessment = &risk
		}
		if m.EnableWhois {
			res.Registrar = RegistrarSnapshot(spec.Domain)
		}
	}

	return res
}

// RunCycle checks all given domains with bounded concurrency. Each domain is
// an independent unit of work; the only shared state is the history store,
// and distinct domains use distinct keys.
func (m *MonitorService) RunCycle(ctx context.Context, specs []model.DomainSpec) []model.CheckResult {
	if m.MaxDomainsPerCycle > 0 && len(specs) > m.MaxDomainsPerCycle {
		utils.Log.Warn("trimming domain set to cycle budget",
			utils.Field("configured", len(specs)),
			utils.Field("budget", m.MaxDomainsPerCycle))
		specs = specs[:m.MaxDomainsPerCycle]
	}

	results := make([]model.CheckResult, len(specs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.MaxConcurrentChecks)

	for i, spec := range specs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, spec model.DomainSpec) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = m.CheckDomain(ctx, spec)
			m.publish(ctx, results[i])
		}(i, spec)
	}
	wg.Wait()

	return results
}

func (m *MonitorService) publish(ctx context.Context, res model.CheckResult) {
	if m.Results != nil {
		if err := m.Results.AppendCheckResult(ctx, res); err != nil {
			utils.Log.Error("failed to append check result",
				utils.Field("domain", res.Domain), utils.Field("error", err.Error()))
		}
	}
	if m.Notifier != nil && notify.ShouldNotify(res) {
		if err := m.Notifier.Notify(ctx, res); err != nil {
			utils.Log.Error("notification failed",
				utils.Field("domain", res.Domain), utils.Field("error", err.Error()))
		}
	}

	switch {
	case res.Error != "":
		utils.Log.Warn("check finished with error",
			utils.Field("domain", res.Domain),
			utils.Field("type", res.RecordType),
			utils.Field("error", res.Error))
	case res.HasChanged && !res.IsFirstCheck:
		utils.Log.Info("record change detected",
			utils.Field("domain", res.Domain),
			utils.Field("type", res.RecordType),
			utils.Field("previous", res.PreviousValues),
			utils.Field("current", res.CurrentValues),
			utils.Field("discrepancy", res.Discrepancy))
	default:
		utils.Log.Debug("check finished",
			utils.Field("domain", res.Domain),
			utils.Field("type", res.RecordType),
			utils.Field("first_check", res.IsFirstCheck))
	}
}
