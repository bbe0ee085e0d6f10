// Package domain implements the MCP tool and resource handlers for the
// passive tree.
//
// The package is intentionally explicit about its boundary:
// - tools answer questions about the shipped graph (inspection, what-if
//   stat calculation, allocation planning),
// - resources expose the raw tree document for clients that want to
//   render or diff it,
// - nothing here mutates character state; builds proposed over MCP are
//   committed through the passives HTTP API.
//
// Handlers run in-process against the loaded graph and calculator, so the
// MCP process works offline from the serving stack.
package domain
