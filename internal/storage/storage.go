package storage

import (
	"context"
	"errors"
	"fmt"

	"dnswatch/internal/model"
)

// ErrNotFound is returned by KV.Get when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// KV is the minimal capability the change detector needs from a backend.
// The redis store implements it for production, the memory store for tests
// and storage-less runs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// HistoryKey builds the persisted-state key for one domain/record-type pair.
// Both parts are required: the same domain may be tracked under several
// record types with independent histories.
func HistoryKey(domain string, recordType model.RecordType) string {
	return fmt.Sprintf("dns:%s:%s", domain, recordType)
}
