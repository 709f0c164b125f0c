// Package collection provides RecordSet, an ordered record list that keeps a
// value index in step with its mutations.
package collection

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	ierrors "github.com/arkilian/colindex/internal/errors"
	"github.com/arkilian/colindex/internal/indexer"
)

// IDProperty is the property name under which a record's ID is indexed.
const IDProperty = "@id"

// Record is a single entry of a RecordSet.
type Record struct {
	ID     uuid.UUID
	Fields map[string]any
}

// NewRecord creates a record with a fresh random ID.
func NewRecord(fields map[string]any) Record {
	return Record{ID: uuid.New(), Fields: fields}
}

// Get returns the value of property, or nil when the record does not have it.
func (r Record) Get(property string) any {
	if property == IDProperty {
		return r.ID
	}
	return r.Fields[property]
}

// Option configures a RecordSet.
type Option func(*settings)

type settings struct {
	policy *indexer.Policy
	verify bool
	logger *slog.Logger
	engine []indexer.Option
}

// WithPolicy applies p whenever the indexes are reset by Assign or Sort.
func WithPolicy(p *indexer.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithVerifyOnMutate checks every index against the records after each
// mutation.
func WithVerifyOnMutate(verify bool) Option {
	return func(s *settings) { s.verify = verify }
}

// WithObserver passes o to the index engine.
func WithObserver(o indexer.Observer) Option {
	return func(s *settings) { s.engine = append(s.engine, indexer.WithObserver(o)) }
}

// WithLogger sets the logger for the set and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// RecordSet is an ordered list of records with value lookups. All methods
// are safe for concurrent use; a single mutex serializes the records and
// their index.
type RecordSet struct {
	mu      sync.Mutex
	records []Record
	engine  *indexer.Engine[Record]
	policy  *indexer.Policy
	verify  bool
	logger  *slog.Logger
}

// New creates a RecordSet holding records.
func New(records []Record, opts ...Option) *RecordSet {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	rs := &RecordSet{
		records: slices.Clone(records),
		policy:  s.policy,
		verify:  s.verify,
		logger:  s.logger.With("component", "recordset"),
	}
	rs.engine = indexer.New(
		func() int { return len(rs.records) },
		func(i int) Record { return rs.records[i] },
		func(r Record, property string) (any, error) { return r.Get(property), nil },
		append(s.engine, indexer.WithLogger(s.logger))...,
	)
	return rs
}

// Count returns the number of records.
func (rs *RecordSet) Count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.records)
}

// At returns the record at position i.
func (rs *RecordSet) At(i int) (Record, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.checkPosition(i, len(rs.records)-1); err != nil {
		return Record{}, err
	}
	return rs.records[i], nil
}

// Records returns a copy of the record list.
func (rs *RecordSet) Records() []Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return slices.Clone(rs.records)
}

// IndexOf returns the position of the first record whose property equals
// value, or indexer.NotFound.
func (rs *RecordSet) IndexOf(property string, value any) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.engine.FirstPosition(property, value)
}

// IndicesOf returns the positions of all records whose property equals value.
func (rs *RecordSet) IndicesOf(property string, value any) ([]int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.engine.Positions(property, value)
}

// IndexOfID returns the position of the record with the given ID, or
// indexer.NotFound.
func (rs *RecordSet) IndexOfID(id uuid.UUID) (int, error) {
	return rs.IndexOf(IDProperty, id)
}

// Add appends records.
func (rs *RecordSet) Add(records ...Record) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.insert(len(rs.records), records)
}

// Insert places records at position at, moving later records up.
func (rs *RecordSet) Insert(at int, records ...Record) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.checkPosition(at, len(rs.records)); err != nil {
		return err
	}
	return rs.insert(at, records)
}

func (rs *RecordSet) insert(at int, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rs.records = slices.Insert(rs.records, at, records...)
	if err := rs.engine.InsertRange(at, len(records)); err != nil {
		return err
	}
	return rs.afterMutation()
}

// RemoveAt removes and returns the record at position at.
func (rs *RecordSet) RemoveAt(at int) (Record, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.checkPosition(at, len(rs.records)-1); err != nil {
		return Record{}, err
	}
	removed := rs.records[at]
	if err := rs.remove(at, 1); err != nil {
		return removed, err
	}
	return removed, nil
}

// RemoveRange removes count records starting at start.
func (rs *RecordSet) RemoveRange(start, count int) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if start < 0 || count < 0 || start+count > len(rs.records) {
		return ierrors.NewValidationError(ierrors.CodeInvalidRange,
			fmt.Sprintf("range [%d, %d) is outside [0, %d)", start, start+count, len(rs.records)))
	}
	return rs.remove(start, count)
}

func (rs *RecordSet) remove(start, count int) error {
	if count == 0 {
		return nil
	}
	rs.records = slices.Delete(rs.records, start, start+count)
	rs.engine.RemoveRange(start, count)
	return rs.afterMutation()
}

// Replace swaps the record at position at and returns the previous one.
func (rs *RecordSet) Replace(at int, record Record) (Record, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.checkPosition(at, len(rs.records)-1); err != nil {
		return Record{}, err
	}
	previous := rs.records[at]
	return previous, rs.update(at, record)
}

// Set changes one field of the record at position at.
func (rs *RecordSet) Set(at int, property string, value any) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.checkPosition(at, len(rs.records)-1); err != nil {
		return err
	}
	if property == "" || property == IDProperty {
		return ierrors.NewValidationError(ierrors.CodeInvalidProperty, fmt.Sprintf("property %q cannot be set", property))
	}
	record := rs.records[at]
	fields := maps.Clone(record.Fields)
	if fields == nil {
		fields = make(map[string]any)
	}
	fields[property] = value
	record.Fields = fields
	return rs.update(at, record)
}

// update reindexes a single position in place; no other position moves.
func (rs *RecordSet) update(at int, record Record) error {
	rs.engine.Remove(at, 1)
	rs.records[at] = record
	if err := rs.engine.Extend(at, 1); err != nil {
		return err
	}
	return rs.afterMutation()
}

// Move relocates the record at from so that it ends up at position to.
func (rs *RecordSet) Move(from, to int) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	last := len(rs.records) - 1
	if err := rs.checkPosition(from, last); err != nil {
		return err
	}
	if err := rs.checkPosition(to, last); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	record := rs.records[from]
	rs.records = slices.Delete(rs.records, from, from+1)
	rs.engine.RemoveRange(from, 1)
	rs.records = slices.Insert(rs.records, to, record)
	if err := rs.engine.InsertRange(to, 1); err != nil {
		return err
	}
	return rs.afterMutation()
}

// Assign replaces all records. Indexes are rebuilt lazily or by the policy.
func (rs *RecordSet) Assign(records []Record) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.records = slices.Clone(records)
	rs.logger.Debug("records assigned", "count", len(records))
	return rs.reset()
}

// Clear removes all records.
func (rs *RecordSet) Clear() error {
	return rs.Assign(nil)
}

// Sort orders the records with cmp. The sort is stable.
func (rs *RecordSet) Sort(cmp func(a, b Record) int) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	slices.SortStableFunc(rs.records, cmp)
	rs.logger.Debug("records sorted", "count", len(rs.records))
	return rs.reset()
}

// Verify checks every index against the records.
func (rs *RecordSet) Verify() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.engine.Verify()
}

// IndexedProperties returns the currently indexed property names.
func (rs *RecordSet) IndexedProperties() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.engine.Properties()
}

func (rs *RecordSet) reset() error {
	rs.engine.Reset()
	if rs.policy != nil {
		if err := rs.policy.Apply(rs.engine); err != nil {
			return err
		}
	}
	return rs.afterMutation()
}

func (rs *RecordSet) afterMutation() error {
	if !rs.verify {
		return nil
	}
	return rs.engine.Verify()
}

func (rs *RecordSet) checkPosition(i, last int) error {
	if i < 0 || i > last {
		return ierrors.NewValidationError(ierrors.CodeOutOfRange,
			fmt.Sprintf("position %d is outside [0, %d]", i, last)).
			WithDetails(map[string]interface{}{"position": i})
	}
	return nil
}
