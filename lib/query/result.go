package query

// Result is the outcome of Fetch.
type Result[T any] struct {
	Items  []*T   // Matching records in working set order
	LastID string // Identifier of the last record, empty if Items is empty
}

// HasCursor reports whether LastID can be used to continue a listing
func (r Result[T]) HasCursor() bool {
	return r.LastID != ""
}

// Len returns the number of records
func (r Result[T]) Len() int {
	return len(r.Items)
}

// IDs returns the identifiers of all records using id
func (r Result[T]) IDs(id func(rec any) string) []string {
	out := make([]string, len(r.Items))
	for i, item := range r.Items {
		out[i] = id(item)
	}
	return out
}
