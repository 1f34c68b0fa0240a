// Package classify gates access to the external page-classification
// service and persists its results.
//
// The service is consumed through the Service interface: a readiness
// probe, a user capability grant, a one-time activation call, and the
// classification call itself. Before first use in a session the Gateway
// polls readiness with a bounded timeout, requests the capability, and
// activates the engine; success is recorded in session-scoped state so
// later calls skip the protocol. Concurrent first calls may race on
// activation; activation is idempotent, so last-write-wins on the flag is
// acceptable.
//
// Results are filtered by a confidence threshold. When nothing clears the
// threshold a default Uncategorized record is stored so a classified URL
// never has an empty record.
package classify
