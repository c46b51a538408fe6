// Package cli implements the interactive dream REPL. It drives a
// core.Service, either the in-process core or a daemon over the control
// API.
package cli
