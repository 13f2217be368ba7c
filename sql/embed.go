// Package sql provides the embedded DDL for the dbupdater control tables.
package sql

import (
	_ "embed"
)

// The table names and columns are a contract with hand-written migration
// sets, which insert into updates_include directly. Both statements use
// CREATE TABLE IF NOT EXISTS and are safe to apply on every run.

// UpdatesSQL creates the updates ledger: one row per applied logical name.
//
//go:embed updates.sql
var UpdatesSQL string

// UpdatesIncludeSQL creates updates_include, the registry of scanned
// directories and the state applied to files found in them.
//
//go:embed updates_include.sql
var UpdatesIncludeSQL string
