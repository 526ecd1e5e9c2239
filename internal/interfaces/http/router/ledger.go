package router

import "github.com/erp/ledger/internal/interfaces/http/handler"

// NewLedgerRoutes builds the /ledger group: the chart of accounts and journal entries
func NewLedgerRoutes(accounts *handler.AccountHandler, entries *handler.JournalEntryHandler) *DomainGroup {
	ledger := NewDomainGroup("ledger", "/ledger")

	ledger.Group("accounts", "/accounts").
		POST("", accounts.Create).
		GET("", accounts.List).
		GET("/:id", accounts.GetByID).
		GET("/:id/hierarchy", accounts.GetHierarchy).
		PUT("/:id", accounts.Update).
		POST("/:id/activate", accounts.Activate).
		POST("/:id/deactivate", accounts.Deactivate)

	ledger.Group("journal-entries", "/journal-entries").
		POST("", entries.Create).
		GET("", entries.List).
		GET("/:id", entries.GetByID).
		POST("/:id/post", entries.Post)

	return ledger
}

// NewSystemRoutes builds the /system group: service info and outbox administration
func NewSystemRoutes(system *handler.SystemHandler, outbox *handler.OutboxHandler) *DomainGroup {
	sys := NewDomainGroup("system", "/system").
		GET("/info", system.GetSystemInfo)

	sys.Group("outbox", "/outbox").
		GET("/stats", outbox.GetStats).
		GET("/dead", outbox.GetDeadLetterEntries).
		POST("/dead/retry", outbox.RetryAllDeadEntries).
		GET("/:id", outbox.GetEntry).
		POST("/:id/retry", outbox.RetryDeadEntry)

	return sys
}
