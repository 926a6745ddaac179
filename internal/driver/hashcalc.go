package driver

import (
	"stubtree/internal/elements"
	"stubtree/internal/project"
)

// SchemaSalt digests everything besides file content that shapes an encoded
// tree: the format and cache versions, the registered kinds in order, and
// whether constants were folded. Index policy is left out since indexes are
// never cached.
func SchemaSalt(reg *elements.Registry, constants bool) project.Digest {
	settings := make([]string, 0, len(reg.Kinds())+1)
	for _, k := range reg.Kinds() {
		settings = append(settings, "kind="+k.String())
	}
	if constants {
		settings = append(settings, "constants")
	}
	return project.Salt(uint16(elements.FormatVersion)<<8|diskCacheSchemaVersion, settings...)
}

// cacheKey: H(content || salt).
func cacheKey(content, salt project.Digest) project.Digest {
	return project.Combine(content, salt)
}
