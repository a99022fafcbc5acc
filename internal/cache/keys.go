package cache

// Key construction for the cascade cache. Keys are namespaced so that
// everything belonging to one repository shares a prefix and can be
// invalidated in one call.

// ChunkKey addresses one hydrated chunk
func ChunkKey(repository, chunkID string) string {
	return "chunk:" + repository + ":" + chunkID
}

// ChunkPrefix covers every chunk entry for a repository
func ChunkPrefix(repository string) string {
	return "chunk:" + repository + ":"
}

// SearchKey addresses one cached search response by query fingerprint
func SearchKey(repository, fingerprint string) string {
	return "search:" + repository + ":" + fingerprint
}

// SearchPrefix covers every search entry for a repository
func SearchPrefix(repository string) string {
	return "search:" + repository + ":"
}

// RepositoryPrefixes lists every namespace to clear when a repository is
// deleted or rebuilt.
func RepositoryPrefixes(repository string) []string {
	return []string{
		ChunkPrefix(repository),
		SearchPrefix(repository),
	}
}
