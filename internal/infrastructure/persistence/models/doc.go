// Package models holds the GORM row types for the ledger tables and their mapping to
// domain aggregates. The domain packages carry no gorm tags; only these types do.
//
// The journal entry has two representations: JournalEntryEventModel rows are the
// authoritative stream, and JournalEntryModel with its line items is the query projection
// rewritten in the same transaction as each append.
package models
