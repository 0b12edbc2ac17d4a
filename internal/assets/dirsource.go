package assets

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true,
}

// DirSource lists media files under a local directory tree. Locators
// are paths relative to Root so listings stay stable when the root
// moves between machines.
type DirSource struct {
	Root  string
	Label string
}

func NewDirSource(root, label string) *DirSource {
	return &DirSource{Root: root, Label: label}
}

func (d *DirSource) Name() string { return d.Label }

func (d *DirSource) List(ctx context.Context, kind string) ([]Asset, error) {
	exts := audioExtensions
	if kind == KindImage {
		exts = imageExtensions
	}

	var out []Asset
	err := filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			// skip dotted directories like .cache
			if strings.HasPrefix(entry.Name(), ".") && path != d.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(entry.Name()))] {
			return nil
		}

		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		out = append(out, Asset{
			Name:       strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Locator:    filepath.ToSlash(rel),
			Kind:       kind,
			SizeBytes:  info.Size(),
			SourceName: d.Label,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
