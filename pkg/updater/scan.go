package updater

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// maxScanDepth bounds how far below an include directory files are picked
// up. A file directly inside the directory has depth 1.
const maxScanDepth = 10

// Scan walks every include directory and returns the candidate files.
//
// Directories are visited in the given order and files within a directory
// are sorted by full path. Only *.sql and *.sql.gz files are collected, up to
// maxScanDepth levels below each directory. Two files with the same logical
// name anywhere in the result fail the whole scan with ErrDuplicateName.
func Scan(dirs []IncludeDirectory) ([]*MigrationFile, error) {
	var files []*MigrationFile
	seen := make(map[string]string)

	for _, dir := range dirs {
		found, err := scanDir(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if prev, ok := seen[f.Name]; ok {
				return nil, fmt.Errorf("%w: %q found at %s and %s", ErrDuplicateName, f.Name, prev, f.Path)
			}
			seen[f.Name] = f.Path
			files = append(files, f)
		}
	}

	return files, nil
}

func scanDir(dir IncludeDirectory) ([]*MigrationFile, error) {
	root := filepath.Clean(dir.Path)
	var files []*MigrationFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Entries deeper than maxScanDepth are never visited, so a
		// directory at the limit is not entered.
		if d.IsDir() {
			if depth(root, path) >= maxScanDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth(root, path) > maxScanDepth {
			return nil
		}
		if d.Type().IsRegular() && isMigrationFile(d.Name()) {
			files = append(files, NewMigrationFile(path, dir.State))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir.Path, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// depth counts the path elements of path below root.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	n := 1
	for _, c := range rel {
		if c == filepath.Separator {
			n++
		}
	}
	return n
}
