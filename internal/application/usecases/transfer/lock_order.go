package transfer

import "github.com/google/uuid"

// lockOrder returns the two wallet ids sorted by their canonical string
// form. Every transaction that touches an overlapping pair locks the rows
// in this order, which keeps the wait-for graph acyclic: with at most two
// locks per transaction and a global acquisition order, no deadlock cycle
// can form.
//
// Lock order is unrelated to transfer direction; the caller re-resolves
// which wallet is the source after both rows are held.
func lockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}
