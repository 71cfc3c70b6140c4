// Package keyspace builds the backend keys used by objectis.
//
// The key layout is shared with data written by other clients and must not change:
//
//	object key      = "{type}/{id}"
//	type index key  = "{type}"
//	collection key  = "{type}/{collection}"
//
// Empty identifiers are rejected by the caller, not here.
package keyspace

// Separator joins the type name with an identifier or a collection name.
const Separator = "/"

// ObjectKey returns the key that stores the encoded record with the given id.
func ObjectKey(typeName, id string) string {
	return typeName + Separator + id
}

// ObjectKeys returns the object keys for all ids, in order.
func ObjectKeys(typeName string, ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ObjectKey(typeName, id)
	}
	return keys
}

// TypeIndexKey returns the key of the set holding every id created for a type.
func TypeIndexKey(typeName string) string {
	return typeName
}

// CollectionKey returns the key of the named collection set of a type.
func CollectionKey(typeName, name string) string {
	return typeName + Separator + name
}
