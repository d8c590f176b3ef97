// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

// Mapping is a bijection between source-relative paths and the
// cache-relative paths their projections were materialized at. Entries
// are never removed. Mapping is not safe for concurrent use; the
// [Manager] guards it.
type Mapping struct {
	bySource map[string]string
	byCache  map[string]string
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		bySource: make(map[string]string),
		byCache:  make(map[string]string),
	}
}

// Insert records source <-> cache. It fails with a
// *MappingInvariantError if either side is already mapped, including to
// the same counterpart.
func (m *Mapping) Insert(source, cache string) error {
	existingCache, sourceTaken := m.bySource[source]
	existingSource, cacheTaken := m.byCache[cache]
	if sourceTaken || cacheTaken {
		return &MappingInvariantError{
			Source:         source,
			Cache:          cache,
			ExistingCache:  existingCache,
			ExistingSource: existingSource,
		}
	}
	m.bySource[source] = cache
	m.byCache[cache] = source
	return nil
}

// BySource returns the cache path source is mapped to.
func (m *Mapping) BySource(source string) (string, bool) {
	cache, ok := m.bySource[source]
	return cache, ok
}

// ByCache returns the source path mapped to cache.
func (m *Mapping) ByCache(cache string) (string, bool) {
	source, ok := m.byCache[cache]
	return source, ok
}

// Len returns the number of mapped pairs.
func (m *Mapping) Len() int {
	return len(m.bySource)
}
