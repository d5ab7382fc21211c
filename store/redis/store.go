// Package redis implements store.Store on Redis. Facilities are JSON strings
// written with SETNX. Each ledger is a hash holding its version and JSON body,
// updated through a Lua compare-and-set so a stale writer never lands.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	bankstore "github.com/xraph/batterybank/store"
)

// DefaultKeyPrefix namespaces every key the store writes.
const DefaultKeyPrefix = "batterybank:"

// KEYS[1] ledger hash, KEYS[2] facility ledger index.
// ARGV[1] version, ARGV[2] body, ARGV[3] index member.
const createLedgerScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "data", ARGV[2])
redis.call("RPUSH", KEYS[2], ARGV[3])
return 1
`

// KEYS[1] ledger hash. ARGV[1] expected version, ARGV[2] new version,
// ARGV[3] body. Returns -1 when missing, 0 on version mismatch.
const updateLedgerScript = `
local current = redis.call("HGET", KEYS[1], "version")
if not current then
  return -1
end
if current ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[2], "data", ARGV[3])
return 1
`

// compile-time interface check
var _ bankstore.Store = (*Store)(nil)

// Store implements store.Store using Redis.
type Store struct {
	client *goredis.Client
	prefix string

	createLedger *goredis.Script
	updateLedger *goredis.Script
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store on client. The store owns the client and closes
// it in Close.
func New(client *goredis.Client, opts ...Option) *Store {
	s := &Store{
		client:       client,
		prefix:       DefaultKeyPrefix,
		createLedger: goredis.NewScript(createLedgerScript),
		updateLedger: goredis.NewScript(updateLedgerScript),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() *goredis.Client { return s.client }

func (s *Store) facilityKey(facilityID string) string { return s.prefix + "facility:" + facilityID }
func (s *Store) facilityIndex() string                { return s.prefix + "facilities" }

func (s *Store) ledgerKey(facilityID, producerID string) string {
	return s.prefix + "ledger:" + facilityID + ":" + producerID
}

func (s *Store) ledgerIndex(facilityID string) string { return s.prefix + "ledgers:" + facilityID }

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ==================== Facility Store ====================

func (s *Store) CreateFacility(ctx context.Context, f *facility.Facility) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("batterybank/redis: encode facility: %w", err)
	}
	key := f.ID.String()
	ok, err := s.client.SetNX(ctx, s.facilityKey(key), body, 0).Result()
	if err != nil {
		return fmt.Errorf("batterybank/redis: create facility: %w", err)
	}
	if !ok {
		return batterybank.ErrAlreadyExists
	}
	if err := s.client.RPush(ctx, s.facilityIndex(), key).Err(); err != nil {
		return fmt.Errorf("batterybank/redis: index facility: %w", err)
	}
	return nil
}

func (s *Store) GetFacility(ctx context.Context, facilityID id.FacilityID) (*facility.Facility, error) {
	body, err := s.client.Get(ctx, s.facilityKey(facilityID.String())).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, batterybank.ErrFacilityNotFound
		}
		return nil, fmt.Errorf("batterybank/redis: get facility: %w", err)
	}
	return decodeFacility(body)
}

func (s *Store) ListFacilities(ctx context.Context, opts facility.ListOpts) ([]*facility.Facility, error) {
	ids, err := s.client.LRange(ctx, s.facilityIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("batterybank/redis: list facilities: %w", err)
	}
	if len(ids) == 0 {
		return []*facility.Facility{}, nil
	}

	keys := make([]string, len(ids))
	for i, fid := range ids {
		keys[i] = s.facilityKey(fid)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("batterybank/redis: list facilities: %w", err)
	}

	result := make([]*facility.Facility, 0, len(values))
	for _, v := range values {
		body, ok := v.(string)
		if !ok {
			continue
		}
		f, err := decodeFacility([]byte(body))
		if err != nil {
			return nil, err
		}
		if opts.Owner == "" || f.Owner == opts.Owner {
			result = append(result, f)
		}
	}
	return page(result, opts.Limit, opts.Offset), nil
}

// ==================== Ledger Store ====================

func (s *Store) CreateLedger(ctx context.Context, l *producer.Ledger) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("batterybank/redis: encode ledger: %w", err)
	}
	fid := l.FacilityID.String()
	keys := []string{s.ledgerKey(fid, l.Producer), s.ledgerIndex(fid)}

	created, err := s.createLedger.Run(ctx, s.client, keys, l.Version, body, l.Producer).Int()
	if err != nil {
		return fmt.Errorf("batterybank/redis: create ledger: %w", err)
	}
	if created == 0 {
		return batterybank.ErrConflict
	}
	return nil
}

func (s *Store) GetLedger(ctx context.Context, facilityID id.FacilityID, producerID string) (*producer.Ledger, error) {
	fields, err := s.client.HMGet(ctx, s.ledgerKey(facilityID.String(), producerID), "version", "data").Result()
	if err != nil {
		return nil, fmt.Errorf("batterybank/redis: get ledger: %w", err)
	}
	return decodeLedger(fields)
}

func (s *Store) ListLedgers(ctx context.Context, facilityID id.FacilityID, opts producer.ListOpts) ([]*producer.Ledger, error) {
	fid := facilityID.String()
	producers, err := s.client.LRange(ctx, s.ledgerIndex(fid), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("batterybank/redis: list ledgers: %w", err)
	}
	producers = page(producers, opts.Limit, opts.Offset)

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.SliceCmd, len(producers))
	for i, p := range producers {
		cmds[i] = pipe.HMGet(ctx, s.ledgerKey(fid, p), "version", "data")
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("batterybank/redis: list ledgers: %w", err)
		}
	}

	result := make([]*producer.Ledger, 0, len(cmds))
	for _, cmd := range cmds {
		l, err := decodeLedger(cmd.Val())
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

// UpdateLedger writes l only if the stored version is still l.Version-1.
func (s *Store) UpdateLedger(ctx context.Context, l *producer.Ledger) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("batterybank/redis: encode ledger: %w", err)
	}
	key := s.ledgerKey(l.FacilityID.String(), l.Producer)

	res, err := s.updateLedger.Run(ctx, s.client, []string{key}, l.Version-1, l.Version, body).Int()
	if err != nil {
		return fmt.Errorf("batterybank/redis: update ledger: %w", err)
	}
	switch res {
	case -1:
		return batterybank.ErrLedgerNotFound
	case 0:
		return fmt.Errorf("batterybank/redis: update ledger %s at version %d: %w", l.ID, l.Version, batterybank.ErrConflict)
	}
	return nil
}

// ==================== Helpers ====================

func decodeFacility(body []byte) (*facility.Facility, error) {
	f := new(facility.Facility)
	if err := json.Unmarshal(body, f); err != nil {
		return nil, fmt.Errorf("batterybank/redis: decode facility: %w", err)
	}
	return f, nil
}

// decodeLedger builds a ledger from an HMGET of version and data.
func decodeLedger(fields []interface{}) (*producer.Ledger, error) {
	if len(fields) != 2 || fields[0] == nil || fields[1] == nil {
		return nil, batterybank.ErrLedgerNotFound
	}
	rawVersion, _ := fields[0].(string)
	body, _ := fields[1].(string)

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("batterybank/redis: decode ledger version: %w", err)
	}
	l := new(producer.Ledger)
	if err := json.Unmarshal([]byte(body), l); err != nil {
		return nil, fmt.Errorf("batterybank/redis: decode ledger: %w", err)
	}
	l.Version = version
	if l.Transactions == nil {
		l.Transactions = make([]producer.Transaction, 0, l.Capacity)
	}
	return l, nil
}

// page applies limit and offset the way the SQL stores do: non-positive
// values are ignored.
func page[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
