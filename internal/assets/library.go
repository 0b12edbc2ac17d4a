package assets

import (
	"context"
	"log"
	"sort"
	"strings"
	"unicode"
)

const (
	KindAudio = "audio"
	KindImage = "image"
)

// Asset is one usable media file. Locator is an opaque reference the
// composition stores verbatim; nothing here interprets it.
type Asset struct {
	Name       string `json:"name"`
	Locator    string `json:"locator"`
	Kind       string `json:"kind"`
	SizeBytes  int64  `json:"size_bytes"`
	SourceName string `json:"source"`
}

// Source is implemented by each place assets can come from (local
// directory, bundled presets). Each source lists its own files and maps
// them into Assets.
type Source interface {
	Name() string
	List(ctx context.Context, kind string) ([]Asset, error)
}

// Library coordinates calls to multiple sources and merges them into a
// single deduplicated listing.
type Library struct {
	Sources []Source
}

func NewLibrary(sources ...Source) *Library {
	return &Library{Sources: sources}
}

// List fetches assets of one kind from every source. Entries whose
// normalized names collide are merged, earlier sources winning the
// locator so a local override shadows a bundled preset.
func (l *Library) List(ctx context.Context, kind string) ([]Asset, error) {
	byKey := make(map[string]Asset)

	for _, src := range l.Sources {
		items, err := src.List(ctx, kind)
		if err != nil {
			log.Printf("[assets] source %s error: %v", src.Name(), err)
			// keep going: one broken source should not empty the library
			continue
		}

		for _, a := range items {
			key := normalizeKey(a.Name)
			if existing, ok := byKey[key]; ok {
				byKey[key] = mergeAsset(existing, a)
			} else {
				byKey[key] = a
			}
		}
	}

	result := make([]Asset, 0, len(byKey))
	for _, a := range byKey {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// normalizeKey converts a name to a canonical form: lowercase, strip
// non-letter/digit characters and compress runs into single spaces.
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// mergeAsset resolves a name collision between two sources. The first
// source keeps its locator; the incoming entry only fills gaps.
func mergeAsset(base, incoming Asset) Asset {
	if base.Locator == "" {
		base.Locator = incoming.Locator
		base.SourceName = incoming.SourceName
	}
	if base.SizeBytes == 0 {
		base.SizeBytes = incoming.SizeBytes
	}
	return base
}
