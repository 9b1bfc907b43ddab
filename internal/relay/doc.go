// Package relay correlates platform webhook events into translation batches.
//
// A release reaching its completed workflow state opens a batch: the relay
// triggers one translation per release item and records each job as
// in-progress. Translation-complete events settle jobs. When no job remains
// in progress the batch closes, exactly once, and the collected results are
// handed to the export dispatcher before the ledger is cleared.
//
// Every multi-step transition (claim, trigger, insert and settle, count,
// close) runs under the Correlator's mutex. Network calls that do not touch
// the ledger happen outside of it
package relay
