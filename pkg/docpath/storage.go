package docpath

import "strings"

// StorageName returns the flat collection name used by backends that cannot
// nest collections: "users/u1/posts" is stored as "users.u1.posts".
func StorageName(collectionPath string) string {
	return strings.Join(Split(collectionPath), StorageSeparator)
}

// PathFromStorageName reverses StorageName.
func PathFromStorageName(name string) string {
	var segs []string
	for _, s := range strings.Split(name, StorageSeparator) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return strings.Join(segs, Separator)
}

// KeyFromStorageName returns the metadata key of a stored collection.
func KeyFromStorageName(name string) string {
	return Key(PathFromStorageName(name))
}

// IsNested reports whether a storage name belongs to a sub-collection.
func IsNested(storageName string) bool {
	return strings.Contains(storageName, StorageSeparator)
}
