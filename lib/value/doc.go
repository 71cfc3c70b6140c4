// Package value implements the tagged dynamic value that field accessors return.
//
// A Value is one of null, int, float, string, bool or array (of Values).
// The query engine never inspects Go types at query time; it works on Values
// only and dispatches on their Kind:
//
//   - Equal: structural equality, numbers compare numerically (int 24 == float 24.0)
//   - Compare: numbers numerically, strings lexicographically, false < true.
//     Any other pairing (string vs int, arrays, nulls) is reported as not comparable.
//   - Contains / ContainsAny: membership tests on array values.
package value
