package indexer

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/spaolacci/murmur3"

	ierrors "github.com/arkilian/colindex/internal/errors"
)

// Fingerprint is a 128-bit murmur3 digest of a property index. Two indexes with
// the same non-empty buckets have the same fingerprint regardless of map order.
type Fingerprint struct {
	Hi, Lo uint64
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x%016x", f.Hi, f.Lo)
}

// Fingerprint returns the digest of property's index. ok is false when the
// property is not indexed.
func (e *Engine[T]) Fingerprint(property string) (fp Fingerprint, ok bool) {
	if !e.HasIndex(property) {
		return Fingerprint{}, false
	}
	return fingerprint(e.indices[property]), true
}

// Verify rebuilds every indexed property from the collection into scratch
// space and compares it with the maintained index. The live indexes are not
// modified. Accessor errors are returned unmodified.
func (e *Engine[T]) Verify() error {
	for _, property := range e.Properties() {
		fresh := make(PropertyIndex)
		if err := e.populate(fresh, property, 0, e.count()); err != nil {
			return err
		}
		want, got := fingerprint(fresh), fingerprint(e.indices[property])
		if want != got {
			return ierrors.NewIndexError(ierrors.CodeCorruptionDetected,
				fmt.Sprintf("index for property %q does not match collection", property)).
				WithDetails(map[string]interface{}{
					"property": property,
					"expected": want.String(),
					"actual":   got.String(),
				})
		}
	}
	return nil
}

type bucketEntry struct {
	key       string
	positions []int
}

func fingerprint(index PropertyIndex) Fingerprint {
	entries := make([]bucketEntry, 0, len(index))
	for key, positions := range index {
		if len(positions) == 0 {
			continue
		}
		// The type prefix keeps int 1 and string "1" apart.
		entries = append(entries, bucketEntry{key: fmt.Sprintf("%T:%v", key, key), positions: positions})
	}
	slices.SortFunc(entries, func(a, b bucketEntry) int {
		return strings.Compare(a.key, b.key)
	})

	h := murmur3.New128()
	var buf [binary.MaxVarintLen64]byte
	for _, entry := range entries {
		h.Write(binary.AppendUvarint(buf[:0], uint64(len(entry.key))))
		h.Write([]byte(entry.key))
		h.Write(binary.AppendUvarint(buf[:0], uint64(len(entry.positions))))
		for _, p := range entry.positions {
			h.Write(binary.AppendVarint(buf[:0], int64(p)))
		}
	}
	hi, lo := h.Sum128()
	return Fingerprint{Hi: hi, Lo: lo}
}
