// Package mcp exposes the indexing, graph, and search engines as MCP
// tools over stdio.
//
// Six tools are registered: add_chunks, build_graph, search_code,
// delete_repository, resolve_symbol, and get_status. Handlers validate
// arguments, delegate to the engines, and return indented JSON. Errors
// follow JSON-RPC conventions: -32602 for invalid parameters, -32603
// for internal failures.
package mcp
