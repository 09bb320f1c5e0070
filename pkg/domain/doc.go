/*
Package domain contains the core vocabulary shared by every part of the Ripple runtime.

It defines the values that flow through the dispatch loop and the read-only view handlers have of the
application. This package is kept free of I/O and scheduling concerns, following the same hexagonal
split as the rest of the module: the runtime (pkg/epic) decides when things happen, domain only says
what they are.

# Key Entities

  - Action: an immutable tagged record (Type + Payload + Meta) dispatched on the bus.
  - State: an immutable snapshot of the application state tree, read through selectors.
  - StateAccessor: the read-only handle given to handlers.
  - LifecycleHooks: callbacks fired by the runtime for observability (dispatch, run start/end, cancel, halt).
  - Standard actions: loading markers, normalized errors, notifications and handler failures.
*/
package domain
