package lattice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lattice-orm/lattice/value"
)

// Cache is the interface for caching query results. Users implement this
// with their preferred backend (Redis, Memcached, in-memory); the engine
// itself calls Get/Set around a Db.Query call keyed by Key, and Clear after
// every successful Insert/Update/Delete.
//
// The cache stores msgpack-encoded row batches (EncodeRows/DecodeRows
// below) rather than leaving the payload codec to the caller, since result
// rows are value.Value, not Go structs a caller's JSON/gob codec already
// knows how to handle.
type Cache interface {
	// Get retrieves a value from the cache. Returns nil, nil if the key
	// doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL. If ttl is 0,
	// the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix, e.g. every
	// cached query over one Key.Table. The Db itself does not call it.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// Key identifies one cached query result: the table it reads, the
// operation kind, and enough of the statement's shape to distinguish two
// different queries against the same table.
type Key struct {
	Table      string
	Operation  string
	Predicates string
	OrderBy    string
	Limit      int
	Offset     int
}

// String renders k as the cache key string; the Table-prefixed form lets
// Cache.DeletePrefix(table+":") invalidate every cached query over one
// table after a write to it.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d:%d", k.Table, k.Operation, k.Predicates, k.OrderBy, k.Limit, k.Offset)
}

// wireValue is the msgpack-portable shadow of value.Value: Value's fields
// are unexported, so a cache codec needs its own reflectable twin built
// from Value's accessor methods rather than msgpack-tagging Value
// directly.
type wireValue struct {
	Kind  value.Kind
	B     bool                `msgpack:",omitempty"`
	I     int64               `msgpack:",omitempty"`
	U     uint64              `msgpack:",omitempty"`
	F     float64             `msgpack:",omitempty"`
	S     string              `msgpack:",omitempty"`
	Bytes []byte              `msgpack:",omitempty"`
	T     time.Time           `msgpack:",omitempty"`
	Id    *wireId             `msgpack:",omitempty"`
	List  []wireValue         `msgpack:",omitempty"`
	Rec   []wireValue         `msgpack:",omitempty"`
	Sp    *wireSparse         `msgpack:",omitempty"`
	En    *wireEnum           `msgpack:",omitempty"`
}

type wireId struct {
	Model value.ModelID
	Repr  string
	Int   int64
	IsInt bool
}

type wireSparse struct {
	Bits   []uint64
	Values []wireValue
}

type wireEnum struct {
	Discriminant int
	Payload      []wireValue
}

func toWire(v value.Value) wireValue {
	w := wireValue{Kind: v.Kind()}
	switch v.Kind() {
	case value.KindBool:
		w.B = v.AsBool()
	case value.KindI8, value.KindI16, value.KindI32, value.KindI64:
		w.I = v.AsInt()
	case value.KindU8, value.KindU16, value.KindU32, value.KindU64:
		w.U = v.AsUint()
	case value.KindF32, value.KindF64:
		w.F = v.AsFloat()
	case value.KindString, value.KindDecimal:
		w.S = v.AsString()
	case value.KindBytes:
		w.Bytes = v.AsBytes()
	case value.KindTimestamp, value.KindDate, value.KindTime, value.KindDateTime:
		w.T = v.AsTime()
	case value.KindId:
		id := v.AsId()
		w.Id = &wireId{Model: id.Model, Repr: id.Repr, Int: id.Int, IsInt: id.IsInt}
	case value.KindList:
		w.List = toWireSlice(v.AsList())
	case value.KindRecord:
		w.Rec = toWireSlice(v.AsRecord())
	case value.KindSparseRecord:
		sp := v.AsSparse()
		w.Sp = &wireSparse{Bits: sp.Fields.Words(), Values: toWireSlice(sp.Values)}
	case value.KindEnum:
		en := v.AsEnum()
		w.En = &wireEnum{Discriminant: en.Discriminant, Payload: toWireSlice(en.Payload)}
	}
	return w
}

func toWireSlice(vs []value.Value) []wireValue {
	if vs == nil {
		return nil
	}
	out := make([]wireValue, len(vs))
	for i, v := range vs {
		out[i] = toWire(v)
	}
	return out
}

func fromWire(w wireValue) value.Value {
	switch w.Kind {
	case value.KindNull:
		return value.Null()
	case value.KindBool:
		return value.Bool(w.B)
	case value.KindI8, value.KindI16, value.KindI32, value.KindI64:
		return value.Int(w.I)
	case value.KindU8, value.KindU16, value.KindU32, value.KindU64:
		return value.Uint(w.U)
	case value.KindF32, value.KindF64:
		return value.Float(w.F)
	case value.KindString:
		return value.String(w.S)
	case value.KindDecimal:
		return value.Decimal(w.S)
	case value.KindBytes:
		return value.Bytes(w.Bytes)
	case value.KindTimestamp:
		return value.Timestamp(w.T)
	case value.KindDate:
		return value.Date(w.T)
	case value.KindTime:
		return value.TimeOfDay(w.T)
	case value.KindDateTime:
		return value.DateTime(w.T)
	case value.KindId:
		if w.Id.IsInt {
			return value.IdValue(value.NewIntId(w.Id.Model, w.Id.Int))
		}
		return value.IdValue(value.NewStringId(w.Id.Model, w.Id.Repr))
	case value.KindList:
		return value.List(fromWireSlice(w.List)...)
	case value.KindRecord:
		return value.Record(fromWireSlice(w.Rec)...)
	case value.KindSparseRecord:
		return value.NewSparseRecord(value.BitSetFromWords(w.Sp.Bits), fromWireSlice(w.Sp.Values))
	case value.KindEnum:
		return value.EnumValue(w.En.Discriminant, fromWireSlice(w.En.Payload)...)
	default:
		return value.Null()
	}
}

func fromWireSlice(ws []wireValue) []value.Value {
	if ws == nil {
		return nil
	}
	out := make([]value.Value, len(ws))
	for i, w := range ws {
		out[i] = fromWire(w)
	}
	return out
}

// EncodeRows msgpack-encodes a batch of rows (e.g. a drained ValueStream's
// Collect output) for storage under a Cache.Set call.
func EncodeRows(rows []value.Value) ([]byte, error) {
	wire := toWireSlice(rows)
	b, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, Wrap(KindAdhoc, err, "cache: encode rows")
	}
	return b, nil
}

// DecodeRows reverses EncodeRows.
func DecodeRows(b []byte) ([]value.Value, error) {
	var wire []wireValue
	if err := msgpack.Unmarshal(b, &wire); err != nil {
		return nil, Wrap(KindAdhoc, err, "cache: decode rows")
	}
	return fromWireSlice(wire), nil
}

// MemoryCache is a process-local Cache backed by a mutex-guarded map, used
// in tests and as a ready-made Cache to pass to WithCache; a Db opened
// without WithCache has no cache at all. Not suitable across Db handles in
// separate processes.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	return e.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.entries[key] = memoryCacheEntry{value: val, expires: expires}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryCacheEntry)
	return nil
}
