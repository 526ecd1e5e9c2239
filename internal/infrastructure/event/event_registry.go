package event

import (
	"github.com/erp/ledger/internal/domain/ledger"
)

// RegisterAllEvents makes every ledger event decodable by serializer
func RegisterAllEvents(serializer *EventSerializer) {
	Register[ledger.JournalEntryCreatedEvent](serializer, ledger.EventTypeJournalEntryCreated)
	Register[ledger.JournalEntryLineItemAddedEvent](serializer, ledger.EventTypeJournalEntryLineItemAdded)
	Register[ledger.JournalEntryPostedEvent](serializer, ledger.EventTypeJournalEntryPosted)
	Register[ledger.AccountBalanceUpdatedEvent](serializer, ledger.EventTypeAccountBalanceUpdated)
}
