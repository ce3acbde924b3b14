// Package service wires the calculator operations to their transports.
//
// It is the transport adapter layer: requests are classified as synchronous or
// server-push, the shared session state is initialized exactly once, and calls
// are delegated to operations registered in the domain package. The same
// session state also backs an MCP SDK server for stdio clients.
package service
