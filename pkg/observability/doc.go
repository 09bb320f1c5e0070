/*
Package observability provides tools for monitoring the Ripple runtime.

Everything here plugs into domain.LifecycleHooks: structured logging of runs, Prometheus metrics
and a bounded journal of recent activity used by the devtools adapters. Combine merges several
hook sets into one.
*/
package observability
