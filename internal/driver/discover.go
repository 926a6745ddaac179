package driver

import (
	"io/fs"
	"path/filepath"
	"sort"

	"stubtree/internal/config"
)

// Discover walks root and returns the slash-separated relative paths m
// accepts, sorted. Excluded directories are not descended into.
func Discover(root string, m *config.Matcher) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && m.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.Match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}
