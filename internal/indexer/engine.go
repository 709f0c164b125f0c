// Package indexer maintains per-property value indexes over an externally owned,
// position-addressed collection.
//
// The engine never stores items, only positions. After the first lookup on a
// property builds its index, the host must report every mutation:
//
//   - inserting k items at s into a collection of n: Shift(s, n-s, k), then Extend(s, k)
//   - removing k items at s from a collection of n: Remove(s, k), then Shift(s+k, n-s-k, -k)
//
// InsertRange and RemoveRange perform these sequences. Calls made out of order
// are not detected and leave the index inconsistent. Verify can be used to
// check an index against the collection.
//
// An Engine is not safe for concurrent use.
package indexer

import (
	"log/slog"
	"slices"
	"time"
)

// NotFound is returned by FirstPosition when no item holds the value.
const NotFound = -1

// CountFunc reports the number of items in the host collection.
type CountFunc func() int

// AtFunc returns the item at a position in [0, count).
type AtFunc[T any] func(index int) T

// ValueFunc returns the value of property for item. It must be a pure function
// of its inputs for the duration of a single engine call.
type ValueFunc[T any] func(item T, property string) (any, error)

// Observer receives notifications about index activity.
type Observer interface {
	IndexBuilt(property string, items int, elapsed time.Duration)
	Lookup(property string, hit bool)
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	observer Observer
	logger   *slog.Logger
}

// WithObserver reports builds and lookups to o.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithLogger sets the logger used for build and reset messages.
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

// Engine indexes the items of a host collection by property value.
type Engine[T any] struct {
	count    CountFunc
	at       AtFunc[T]
	value    ValueFunc[T]
	indices  map[string]PropertyIndex
	observer Observer
	logger   *slog.Logger
}

// New creates an engine over the collection described by the accessors.
// No index exists until the first lookup.
func New[T any](count CountFunc, at AtFunc[T], value ValueFunc[T], opts ...Option) *Engine[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[T]{
		count:    count,
		at:       at,
		value:    value,
		observer: o.observer,
		logger:   o.logger.With("component", "indexer"),
	}
}

// Positions returns the ascending positions of all items whose property equals
// value. The result is a copy. An empty property name never builds an index
// and yields no positions.
func (e *Engine[T]) Positions(property string, value any) ([]int, error) {
	index, err := e.index(property)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return []int{}, nil
	}

	positions, ok := index[NormalizeKey(value)]
	if !ok && value != nil {
		positions, ok = index[bracketKey(value)]
	}
	if e.observer != nil {
		e.observer.Lookup(property, len(positions) > 0)
	}
	if !ok {
		return []int{}, nil
	}
	return slices.Clone(positions), nil
}

// FirstPosition returns the lowest position whose property equals value, or
// NotFound.
func (e *Engine[T]) FirstPosition(property string, value any) (int, error) {
	positions, err := e.Positions(property, value)
	if err != nil {
		return NotFound, err
	}
	if len(positions) == 0 {
		return NotFound, nil
	}
	return positions[0], nil
}

// EnsureIndex builds the index for property if it does not exist yet.
func (e *Engine[T]) EnsureIndex(property string) error {
	_, err := e.index(property)
	return err
}

// HasIndex reports whether property is currently indexed.
func (e *Engine[T]) HasIndex(property string) bool {
	if property == "" || e.indices == nil {
		return false
	}
	_, ok := e.indices[property]
	return ok
}

// Properties returns the indexed property names in sorted order.
func (e *Engine[T]) Properties() []string {
	names := make([]string, 0, len(e.indices))
	for name := range e.indices {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Extend indexes the items at [start, start+length) for every indexed property.
// The host collection must already hold those items at their final positions.
func (e *Engine[T]) Extend(start, length int) error {
	for property, index := range e.indices {
		if err := e.populate(index, property, start, length); err != nil {
			return err
		}
	}
	return nil
}

// Shift adds offset to every stored position in [start, start+length).
func (e *Engine[T]) Shift(start, length, offset int) {
	finish := start + length
	e.eachBucket(func(positions []int) []int {
		for i, p := range positions {
			if p >= start && p < finish {
				positions[i] = p + offset
			}
		}
		return positions
	})
}

// Remove deletes the positions start..start+length-1 from every bucket.
// Remaining positions are not renumbered.
func (e *Engine[T]) Remove(start, length int) {
	e.eachBucket(func(positions []int) []int {
		for p := start; p < start+length; p++ {
			if at := slices.Index(positions, p); at > -1 {
				positions = slices.Delete(positions, at, at+1)
			}
		}
		return positions
	})
}

// InsertRange reindexes after the host inserted length items at start. The
// collection must already contain them.
func (e *Engine[T]) InsertRange(start, length int) error {
	if e.indices == nil || length <= 0 {
		return nil
	}
	prior := e.count() - length
	e.Shift(start, prior-start, length)
	return e.Extend(start, length)
}

// RemoveRange reindexes after the host removed length items at start. The
// collection must already have closed the gap.
func (e *Engine[T]) RemoveRange(start, length int) {
	if e.indices == nil || length <= 0 {
		return
	}
	prior := e.count() + length
	e.Remove(start, length)
	e.Shift(start+length, prior-start-length, -length)
}

// Reset drops every index. The next lookup rebuilds from scratch.
func (e *Engine[T]) Reset() {
	if e.indices != nil {
		e.logger.Debug("index reset", "properties", len(e.indices))
	}
	e.indices = nil
}

// DropProperty drops the index of a single property.
func (e *Engine[T]) DropProperty(property string) {
	if !e.HasIndex(property) {
		return
	}
	delete(e.indices, property)
	e.logger.Debug("index dropped", "property", property)
}

func (e *Engine[T]) index(property string) (PropertyIndex, error) {
	if property == "" {
		return nil, nil
	}
	if index, ok := e.indices[property]; ok {
		return index, nil
	}
	index, err := e.build(property)
	if err != nil {
		return nil, err
	}
	if e.indices == nil {
		e.indices = make(map[string]PropertyIndex)
	}
	e.indices[property] = index
	return index, nil
}

// build scans the whole collection. A failed build installs nothing.
func (e *Engine[T]) build(property string) (PropertyIndex, error) {
	started := time.Now()
	count := e.count()
	index := make(PropertyIndex)
	if err := e.populate(index, property, 0, count); err != nil {
		return nil, err
	}
	elapsed := time.Since(started)
	e.logger.Debug("index built", "property", property, "items", count, "values", len(index), "elapsed", elapsed)
	if e.observer != nil {
		e.observer.IndexBuilt(property, count, elapsed)
	}
	return index, nil
}

func (e *Engine[T]) populate(index PropertyIndex, property string, start, length int) error {
	for i := start; i < start+length; i++ {
		raw, err := e.value(e.at(i), property)
		if err != nil {
			return err
		}
		key := NormalizeKey(raw)
		index[key] = insertPosition(index[key], i)
	}
	return nil
}

func (e *Engine[T]) eachBucket(fn func(positions []int) []int) {
	for _, index := range e.indices {
		for key, positions := range index {
			index[key] = fn(positions)
		}
	}
}
