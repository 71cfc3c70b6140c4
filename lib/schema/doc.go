// Package schema provides type descriptors and the registry of usable record types.
//
// A Descriptor is the registration-time metadata of a record type: its type
// name (the key namespace), its identifier field and a field accessor table
// mapping field names to getters that return tagged value.Value instances.
// The table is built exactly once, either by reflection (Describe) or from
// explicitly declared accessors (Declare), so that queries never have to
// inspect Go types ad hoc.
//
// Descriptor derivation rules (Describe):
//
//   - Field names come from the `objectis` tag, else the `json` tag, else the
//     Go field name. Queries may use the canonical or the Go name.
//     `objectis:"-"` hides a field.
//   - Exported fields of kind int*, uint*, float*, string, bool, pointers to
//     those and slices/arrays of those are queryable. Other fields are ignored
//     (they are still encoded by the codec).
//   - The identifier is the field tagged `objectis:",id"`, otherwise the field
//     named "id" (case-insensitive). Declared fields are searched first, then
//     the embedded structs level by level. It must be an exported string.
//
// The Registry is append-only: a type is validated under a mutex and then
// published in a concurrent map, after which readers never block.
package schema
