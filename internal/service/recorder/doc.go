// Package recorder implements the Event Recorder.
//
// It validates and durably appends view, click and conversion events and
// does nothing else: no attribution, no commission, no ledger writes.
// Downstream processing reads the log asynchronously, so a slow consumer
// never blocks ingestion and every write stands on its own.
package recorder
