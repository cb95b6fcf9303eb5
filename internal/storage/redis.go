package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"dnswatch/internal/model"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/redis/go-redis/v9"
)

const (
	watchedDomainsKey = "watched_domains"
	checkLogPrefix    = "checks:"
	lastCheckPrefix   = "lastcheck:"
	checkLogMax       = 99
)

type Storage struct {
	Client *redis.Client
}

func NewStorage(host, port string) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port,
		DB:   0,
	})
	return &Storage{Client: rdb}
}

// Get implements KV. redis.Nil is mapped to ErrNotFound so callers never see
// the driver's sentinel.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return val, err
}

// Put implements KV. History records never expire, the scheduler overwrites
// them every cycle.
func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	return s.Client.Set(ctx, key, value, 0).Err()
}

func (s *Storage) GetWatchedDomains(ctx context.Context) ([]model.DomainSpec, error) {
	raw, err := s.Client.LRange(ctx, watchedDomainsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var specs []model.DomainSpec
	for _, v := range raw {
		var spec model.DomainSpec
		if err := json.Unmarshal([]byte(v), &spec); err == nil {
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

func (s *Storage) AddWatchedDomain(ctx context.Context, spec model.DomainSpec) error {
	existing, err := s.GetWatchedDomains(ctx)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Domain == spec.Domain && e.RecordType == spec.RecordType {
			return nil // already watched
		}
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return s.Client.RPush(ctx, watchedDomainsKey, string(data)).Err()
}

func (s *Storage) RemoveWatchedDomain(ctx context.Context, domain string, recordType model.RecordType) error {
	raw, err := s.Client.LRange(ctx, watchedDomainsKey, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, v := range raw {
		var spec model.DomainSpec
		if err := json.Unmarshal([]byte(v), &spec); err != nil {
			continue
		}
		if spec.Domain == domain && spec.RecordType == recordType {
			if err := s.Client.LRem(ctx, watchedDomainsKey, 0, v).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// AppendCheckResult pushes a check result onto the per-domain log, capped at
// 100 entries, and refreshes the last-result snapshot.
func (s *Storage) AppendCheckResult(ctx context.Context, res model.CheckResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	logKey := checkLogKey(res.Domain, res.RecordType)

	pipe := s.Client.Pipeline()
	pipe.LPush(ctx, logKey, string(data))
	pipe.LTrim(ctx, logKey, 0, checkLogMax)
	pipe.Set(ctx, lastCheckKey(res.Domain, res.RecordType), string(data), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetLastCheckResult(ctx context.Context, domain string, recordType model.RecordType) (*model.CheckResult, error) {
	raw, err := s.Client.Get(ctx, lastCheckKey(domain, recordType)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res model.CheckResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetHistoryWithDiffs returns the stored check log newest-first, plus a
// unified diff between each entry and its predecessor.
func (s *Storage) GetHistoryWithDiffs(ctx context.Context, domain string, recordType model.RecordType) ([]model.CheckResult, []string, error) {
	raw, err := s.Client.LRange(ctx, checkLogKey(domain, recordType), 0, -1).Result()
	if err != nil {
		return nil, nil, err
	}

	var entries []model.CheckResult
	var pretty []string
	for _, v := range raw {
		var res model.CheckResult
		if err := json.Unmarshal([]byte(v), &res); err != nil {
			continue
		}
		entries = append(entries, res)
		indented, _ := json.MarshalIndent(res, "", "  ")
		pretty = append(pretty, string(indented)+"\n")
	}

	var diffs []string
	for i := 0; i+1 < len(pretty); i++ {
		older, newer := pretty[i+1], pretty[i]
		edits := myers.ComputeEdits(span.URIFromPath("check"), older, newer)
		diffs = append(diffs, fmt.Sprint(gotextdiff.ToUnified("previous", "current", older, edits)))
	}
	return entries, diffs, nil
}

func checkLogKey(domain string, recordType model.RecordType) string {
	return checkLogPrefix + domain + ":" + string(recordType)
}

func lastCheckKey(domain string, recordType model.RecordType) string {
	return lastCheckPrefix + domain + ":" + string(recordType)
}

// Ping verifies connectivity at startup.
func (s *Storage) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

var _ KV = (*Storage)(nil)
var _ KV = (*MemoryStore)(nil)
