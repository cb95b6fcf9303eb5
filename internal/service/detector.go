package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dnswatch/internal/model"
	"dnswatch/internal/storage"
)

// ChangeDetector owns the per-key history records. Keys move through two
// states: unseen (no record yet) and tracked.
type ChangeDetector struct {
	Store storage.KV
}

func NewChangeDetector(store storage.KV) *ChangeDetector {
	return &ChangeDetector{Store: store}
}

// Detect compares the consensus values against stored history and writes the
// new state back.
//
// unseen -> tracked: isFirstCheck=true and hasChanged is forced false; a
// domain cannot change relative to a baseline that does not exist yet, which
// suppresses false alerts on first deployment.
//
// tracked -> tracked: hasChanged is set-inequality against the stored values,
// and the record is overwritten with the new observation whether or not it
// changed.
//
// softFail marks a consensus produced by an all-resolver failure: the empty
// result must not clobber a good history record, so the write is skipped.
// Store errors are hard failures for this domain only.
func (d *ChangeDetector) Detect(ctx context.Context, domain string, recordType model.RecordType, current []string, observedAt time.Time, softFail bool) (previous []string, isFirstCheck, hasChanged bool, err error) {
	key := storage.HistoryKey(domain, recordType)

	raw, err := d.Store.Get(ctx, key)
	switch {
	case err == storage.ErrNotFound:
		isFirstCheck = true
	case err != nil:
		return nil, false, false, fmt.Errorf("history read for %s: %w", key, err)
	default:
		var rec model.HistoryRecord
		if uerr := json.Unmarshal(raw, &rec); uerr != nil {
			return nil, false, false, fmt.Errorf("history decode for %s: %w", key, uerr)
		}
		previous = rec.Values
		hasChanged = !model.EqualValueSets(previous, current)
	}

	if softFail {
		return previous, isFirstCheck, hasChanged, nil
	}

	rec := model.HistoryRecord{
		Domain:     domain,
		RecordType: recordType,
		Values:     current,
		ObservedAt: observedAt,
	}
	data, merr := json.Marshal(rec)
	if merr != nil {
		return previous, isFirstCheck, hasChanged, merr
	}
	if perr := d.Store.Put(ctx, key, data); perr != nil {
		return previous, isFirstCheck, hasChanged, fmt.Errorf("history write for %s: %w", key, perr)
	}
	return previous, isFirstCheck, hasChanged, nil
}
