// Package query exposes the read side of the pipeline as named
// operations behind a uniform response envelope.
//
// Every operation returns either `{success: true, data, stats}` or
// `{success: false, error}`; failures are folded into the envelope and
// never escape as exceptions past the pipeline boundary. The same
// operations are reachable two ways: a single POST endpoint taking
// `{"op": ..., "params": ...}` for message-style clients, and one GET
// route per operation for direct consumption.
package query
