// Package output renders pacefire's per-request lines and its exit summary.
//
// Text lines keep the format operators grep for:
//
//	[https://example.com] status code: 200 | response time, ms: 12.5 | requests/m: 3
//
// With JSON output each completion is one object per line instead.
package output
