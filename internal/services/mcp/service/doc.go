// Package service wires protocol transport to the passive tree advisors.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio or streamable HTTP and delegates business meaning to the domain
// handlers. The server is self-contained — it loads the embedded tree
// (or a document override from disk) and answers from process memory, so
// agents can plan builds without the passives HTTP service running.
package service
