package handler

import (
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// JournalEntryHandler serves journal entry recording and posting
type JournalEntryHandler struct {
	BaseHandler
	entryService *ledgerapp.JournalEntryService
}

// NewJournalEntryHandler creates a new JournalEntryHandler
func NewJournalEntryHandler(entryService *ledgerapp.JournalEntryService) *JournalEntryHandler {
	return &JournalEntryHandler{
		entryService: entryService,
	}
}

// Create godoc
// @ID           createJournalEntry
// @Summary      Record a journal entry
// @Description  Records an unposted entry. Lines must reference usable accounts in the entry currency and debits must equal credits.
// @Tags         journal-entries
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user" default(system)
// @Param        request body ledgerapp.CreateJournalEntryRequest true "Journal entry"
// @Success      201 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /ledger/journal-entries [post]
func (h *JournalEntryHandler) Create(c *gin.Context) {
	var req ledgerapp.CreateJournalEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.CreatedBy = getActor(c)

	entry, err := h.entryService.CreateJournalEntry(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, entry)
}

// List godoc
// @ID           listJournalEntries
// @Summary      List journal entries
// @Description  Paged summaries, most recent posting date first unless order_by says otherwise
// @Tags         journal-entries
// @Produce      json
// @Param        from_date query string false "Earliest posting date" format(date)
// @Param        to_date query string false "Latest posting date" format(date)
// @Param        account_id query string false "Entries touching this account" format(uuid)
// @Param        is_posted query bool false "Posting status"
// @Param        reference query string false "Exact reference"
// @Param        created_by query string false "Creator"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(50) maximum(100)
// @Success      200 {object} APIResponse[[]ledgerapp.JournalEntrySummaryResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /ledger/journal-entries [get]
func (h *JournalEntryHandler) List(c *gin.Context) {
	var query ledgerapp.JournalEntryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.entryService.GetJournalEntries(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetByID godoc
// @ID           getJournalEntry
// @Summary      Get a journal entry with its lines
// @Tags         journal-entries
// @Produce      json
// @Param        id path string true "Journal entry ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /ledger/journal-entries/{id} [get]
func (h *JournalEntryHandler) GetByID(c *gin.Context) {
	id, ok := h.parseIDParam(c, "journal entry")
	if !ok {
		return
	}

	entry, err := h.entryService.GetJournalEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, entry)
}

// Post godoc
// @ID           postJournalEntry
// @Summary      Post a journal entry
// @Description  Posts the entry. Account balances are updated asynchronously once the posting event is delivered.
// @Tags         journal-entries
// @Produce      json
// @Param        id path string true "Journal entry ID" format(uuid)
// @Param        X-User-ID header string false "Acting user" default(system)
// @Success      200 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /ledger/journal-entries/{id}/post [post]
func (h *JournalEntryHandler) Post(c *gin.Context) {
	id, ok := h.parseIDParam(c, "journal entry")
	if !ok {
		return
	}

	entry, err := h.entryService.PostJournalEntry(c.Request.Context(), id, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, entry)
}
