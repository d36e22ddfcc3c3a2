// Package dashboard draws a live termui view of a pacefire run: the run
// parameters, one table row per endpoint with its rolling count and latest
// response, a throughput sparkline and the latest transport errors.
package dashboard
