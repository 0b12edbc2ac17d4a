// Package composition holds the ordering and reference rules shared by
// every story mutation: contiguous zero-based order indexes per sibling
// set, transition pair constraints, cascading audio defaults, and the
// per-story lock that keeps reorder operations serialized.
package composition

// ClampPosition clamps p into [0, n]. Out-of-range insert positions are
// never an error; they append or prepend.
func ClampPosition(p, n int) int {
	if p < 0 {
		return 0
	}
	if p > n {
		return n
	}
	return p
}

// InsertAt returns the sibling IDs with id inserted at position p
// (clamped). Every sibling at or after p shifts up by one slot.
func InsertAt(ids []string, id string, p int) []string {
	p = ClampPosition(p, len(ids))
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:p]...)
	out = append(out, id)
	out = append(out, ids[p:]...)
	return out
}

// Remove returns the sibling IDs without id, closing the gap. The
// second result reports whether id was present.
func Remove(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	found := false
	for _, v := range ids {
		if v == id && !found {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}

// Move removes id from its current position and re-inserts it at `to`,
// where `to` is interpreted against the post-removal sequence. The
// second result reports whether id was present.
func Move(ids []string, id string, to int) ([]string, bool) {
	without, found := Remove(ids, id)
	if !found {
		return ids, false
	}
	return InsertAt(without, id, to), true
}

// IndexOf returns the position of id within ids, or -1.
func IndexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
