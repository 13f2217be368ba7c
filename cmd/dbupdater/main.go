// Package main provides the dbupdater CLI.
//
// The CLI supports:
//   - update: Create, populate and update every enabled database
//   - status: Show what the next update would do, without writing
//   - doctor: Run health checks on each database
//   - config show: Print the effective configuration
//
// Usage:
//
//	dbupdater [flags] <command>
//
// Connection settings and update switches come from dbupdater.yaml,
// DBUPDATER_* environment variables and flags.
package main

func main() {
	Execute()
}
