package updater

import (
	"fmt"
	"strings"
)

// Database identifies one of the logical databases migrations are kept for.
// Values are bits so a set of databases can be expressed as a mask.
type Database int

const (
	DatabaseAuth       Database = 1 << iota // auth / login database
	DatabaseCharacters                      // character database
	DatabaseWorld                           // world database
	DatabaseHotfixes                        // hotfix database
)

// AllDatabases lists every logical database in the order they are updated.
var AllDatabases = []Database{DatabaseAuth, DatabaseCharacters, DatabaseWorld, DatabaseHotfixes}

// Name returns the short name used in configuration, e.g. "world".
func (d Database) Name() string {
	switch d {
	case DatabaseAuth:
		return "auth"
	case DatabaseCharacters:
		return "characters"
	case DatabaseWorld:
		return "world"
	case DatabaseHotfixes:
		return "hotfixes"
	default:
		return fmt.Sprintf("database(%d)", int(d))
	}
}

// ModuleName returns the directory name used under data/sql, e.g. "db-world".
func (d Database) ModuleName() string {
	return "db-" + d.Name()
}

// Enabled reports whether d is selected by the EnableDatabases mask.
func (d Database) Enabled(mask int) bool {
	return mask&int(d) != 0
}

// ParseDatabase parses a short database name.
func ParseDatabase(s string) (Database, error) {
	for _, d := range AllDatabases {
		if strings.EqualFold(d.Name(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown database %q", s)
}
