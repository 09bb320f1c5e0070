/*
Package ports defines the driven and driving ports (interfaces) of the Ripple runtime.

These interfaces decouple the runtime from external implementations, allowing
features to cache remote responses in various backends and adapters (HTTP, MCP)
to drive any runtime that can dispatch and expose state.

# Key Interfaces

  - Cache: Stores remote provider responses (e.g., in Memory or Redis).
  - Dispatcher: Accepts actions from outside the handler graph.
  - Runtime: What devtools adapters need from a running engine.
*/
package ports
