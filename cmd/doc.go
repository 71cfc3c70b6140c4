// Package cmd implements the command-line interface of objectis. It connects
// to a backend with the settings from flags, OBJECTIS_* environment variables
// or a .env file, and exposes the library operations as subcommands.
//
// The package is organized into several subpackages:
//
//   - obj: Commands for records of a built-in Person type (seed, get, list, delete,
//     filter, collection, stats, perf)
//   - kv: Raw key and set inspection of the backend (get, members, ismember, del, flush, info)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See objectis -help for a list of all commands.
package cmd
