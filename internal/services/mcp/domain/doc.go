// Package domain defines the calculator operations exposed over MCP.
//
// An Operation couples a parameter Schema with a Handler that only ever sees
// validated, typed arguments. The Registry owns operations by name.
//
// Domain failures such as division by zero are returned as ordinary text
// content; only malformed input is reported as an error.
package domain
