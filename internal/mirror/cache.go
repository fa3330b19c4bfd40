// Package mirror keeps the last value sent to each outbound hardware control
// so redundant writes never reach the wire.
//
// Entries are created lazily on first write. ForceResync retransmits every
// known entry (used when the surface reports a firmware reset) without
// clearing the cache, since the cache still reflects what the surface should
// show. Clear sends an "off" value for every known key unconditionally.
//
// A Cache is single-owner: the daemon loop is its only caller.
package mirror

import "errors"

// TransmitFunc performs the wire write for one key.
type TransmitFunc[K comparable, V comparable] func(key K, value V) error

// Cache is a write-through dedup cache in front of a TransmitFunc.
type Cache[K comparable, V comparable] struct {
	send   TransmitFunc[K, V]
	values map[K]V
	order  []K

	sent uint64
}

// New creates an empty cache.
func New[K comparable, V comparable](send TransmitFunc[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		send:   send,
		values: make(map[K]V),
	}
}

// Write transmits value for key unless it equals the cached value. It
// reports whether a wire write happened. A failed write leaves the cache
// untouched so the next Write retries.
func (c *Cache[K, V]) Write(key K, value V) (bool, error) {
	if cur, ok := c.values[key]; ok && cur == value {
		return false, nil
	}
	if err := c.transmit(key, value); err != nil {
		return false, err
	}
	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
	}
	c.values[key] = value
	return true, nil
}

// ForceResync retransmits every cached entry in first-write order and
// returns how many writes were attempted. Errors are joined; a failure on
// one key does not stop the others.
func (c *Cache[K, V]) ForceResync() (int, error) {
	var errs []error
	n := 0
	for _, k := range c.order {
		n++
		if err := c.transmit(k, c.values[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// Clear transmits off for every cached key and for each key in extra,
// without consulting cached values. Afterwards every such key is cached as
// off.
func (c *Cache[K, V]) Clear(off V, extra ...K) error {
	var errs []error
	done := make(map[K]struct{}, len(c.order)+len(extra))

	keys := make([]K, 0, len(c.order)+len(extra))
	keys = append(keys, c.order...)
	keys = append(keys, extra...)

	for _, k := range keys {
		if _, ok := done[k]; ok {
			continue
		}
		done[k] = struct{}{}
		if err := c.transmit(k, off); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := c.values[k]; !ok {
			c.order = append(c.order, k)
		}
		c.values[k] = off
	}
	return errors.Join(errs...)
}

// Forget drops key so it is no longer part of a resync.
func (c *Cache[K, V]) Forget(key K) {
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Value returns the cached value for key.
func (c *Cache[K, V]) Value(key K) (V, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int { return len(c.values) }

// Sent returns the total number of wire writes attempted through the cache.
func (c *Cache[K, V]) Sent() uint64 { return c.sent }

func (c *Cache[K, V]) transmit(key K, value V) error {
	c.sent++
	if c.send == nil {
		return nil
	}
	return c.send(key, value)
}
