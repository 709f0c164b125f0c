package indexer

import "sort"

// halvingWalk looks for the insertion point of value in sorted by walking with a
// halving distance. Elements greater than value move the cursor left, all other
// elements move it right by at least one. A cursor that has walked off the left
// edge compares as "not greater".
//
// The walk is exact for short lists but not in general: it can stop one slot past
// the upper bound ([1 3 5 7], 6 gives 4), and on longer lists it can leave the
// [0, len(sorted)] range altogether (appending 9 to 0..8 gives 10). Use
// insertionIndex for anything that mutates a bucket.
func halvingWalk(sorted []int, value int) int {
	n := len(sorted)
	distance := n
	position := distance / 2
	for distance > 0 && position < n {
		greater := position >= 0 && sorted[position] > value
		distance /= 2
		if greater {
			position -= distance
		} else {
			position += max(distance, 1)
		}
	}
	return position
}

// insertionIndex returns the position in sorted at which value must be inserted
// to keep the list ascending. A value equal to an existing element goes after it.
// The result is always within [0, len(sorted)] and equals the walk's own answer
// whenever that answer is already a valid upper bound.
func insertionIndex(sorted []int, value int) int {
	position := min(max(halvingWalk(sorted, value), 0), len(sorted))
	switch {
	case position > 0 && sorted[position-1] > value:
		return upperBound(sorted[:position], value)
	case position < len(sorted) && sorted[position] <= value:
		return position + upperBound(sorted[position:], value)
	}
	return position
}

func upperBound(sorted []int, value int) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i] > value })
}

// insertPosition places value into positions at its insertion index and returns
// the grown slice.
func insertPosition(positions []int, value int) []int {
	at := insertionIndex(positions, value)
	positions = append(positions, 0)
	copy(positions[at+1:], positions[at:])
	positions[at] = value
	return positions
}
