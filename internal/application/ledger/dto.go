package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of posting and document dates
const DateLayout = "2006-01-02"

// ==================== Account DTOs ====================

// CreateAccountRequest represents a request to open a new account
type CreateAccountRequest struct {
	AccountNumber    string     `json:"account_number" binding:"required,min=4,max=10,alphanum"`
	Name             string     `json:"name" binding:"required,min=1,max=200"`
	Description      string     `json:"description" binding:"max=1000"`
	AccountType      string     `json:"account_type" binding:"required"`
	Currency         string     `json:"currency" binding:"required,iso4217"`
	ParentAccountID  *uuid.UUID `json:"parent_account_id"`
	IsControlAccount bool       `json:"is_control_account"`
}

// UpdateAccountInfoRequest changes the descriptive fields of an account
type UpdateAccountInfoRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=1000"`
}

// AccountQuery narrows an account listing
type AccountQuery struct {
	AccountType     string `form:"account_type"`
	ActiveOnly      bool   `form:"active_only"`
	ParentAccountID string `form:"parent_account_id" binding:"omitempty,uuid"`
	IncludeChildren bool   `form:"include_children"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID                uuid.UUID         `json:"id"`
	AccountNumber     string            `json:"account_number"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	AccountType       string            `json:"account_type"`
	NormalBalanceSide string            `json:"normal_balance_side"`
	Currency          string            `json:"currency"`
	IsActive          bool              `json:"is_active"`
	IsControlAccount  bool              `json:"is_control_account"`
	ParentAccountID   *uuid.UUID        `json:"parent_account_id,omitempty"`
	CurrentBalance    valueobject.Money `json:"current_balance"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`
	Version           int               `json:"version"`
	Children          []AccountResponse `json:"children,omitempty"`
}

// ToAccountResponse converts a domain Account to AccountResponse
func ToAccountResponse(a *ledger.Account) AccountResponse {
	resp := AccountResponse{
		ID:                a.ID,
		AccountNumber:     a.AccountNumber,
		Name:              a.Name,
		Description:       a.Description,
		AccountType:       a.AccountType.String(),
		NormalBalanceSide: a.NormalBalanceSide().String(),
		Currency:          a.Currency.String(),
		IsActive:          a.IsActive,
		IsControlAccount:  a.IsControlAccount,
		ParentAccountID:   a.ParentAccountID,
		CurrentBalance:    a.CurrentBalance,
		CreatedAt:         a.CreatedAt,
		Version:           a.Version,
	}
	if a.HasBeenUpdated() {
		updatedAt := a.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}

// ToAccountResponses converts a slice of accounts
func ToAccountResponses(accounts []*ledger.Account) []AccountResponse {
	responses := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		responses[i] = ToAccountResponse(a)
	}
	return responses
}

// ==================== Journal Entry DTOs ====================

// CreateLineItemInput represents one debit or credit line of a new entry
type CreateLineItemInput struct {
	AccountID            uuid.UUID       `json:"account_id" binding:"required"`
	DebitCreditIndicator string          `json:"debit_credit_indicator" binding:"required"`
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	Description          string          `json:"description" binding:"max=500"`
}

// CreateJournalEntryRequest represents a request to record a new journal entry
type CreateJournalEntryRequest struct {
	PostingDate  string                `json:"posting_date" binding:"required,datetime=2006-01-02"`
	DocumentDate string                `json:"document_date" binding:"omitempty,datetime=2006-01-02"`
	Reference    string                `json:"reference" binding:"required,min=1,max=100"`
	Description  string                `json:"description" binding:"max=500"`
	Currency     string                `json:"currency" binding:"required,iso4217"`
	LineItems    []CreateLineItemInput `json:"line_items" binding:"required,min=1,dive"`
	CreatedBy    string                `json:"-"`
}

// JournalEntryQuery narrows a journal entry listing
type JournalEntryQuery struct {
	FromDate  string `form:"from_date" binding:"omitempty,datetime=2006-01-02"`
	ToDate    string `form:"to_date" binding:"omitempty,datetime=2006-01-02"`
	AccountID string `form:"account_id" binding:"omitempty,uuid"`
	IsPosted  *bool  `form:"is_posted"`
	Reference string `form:"reference"`
	CreatedBy string `form:"created_by"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LineItemResponse represents a journal entry line in API responses
type LineItemResponse struct {
	ID                   uuid.UUID         `json:"id"`
	AccountID            uuid.UUID         `json:"account_id"`
	AccountNumber        string            `json:"account_number"`
	DebitCreditIndicator string            `json:"debit_credit_indicator"`
	Amount               valueobject.Money `json:"amount"`
	Description          string            `json:"description,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// JournalEntryResponse represents a journal entry with its line items
type JournalEntryResponse struct {
	JournalEntrySummaryResponse
	LineItems []LineItemResponse `json:"line_items"`
}

// JournalEntrySummaryResponse is the list form of a journal entry
type JournalEntrySummaryResponse struct {
	ID                 uuid.UUID         `json:"id"`
	JournalEntryNumber string            `json:"journal_entry_number"`
	PostingDate        string            `json:"posting_date"`
	DocumentDate       string            `json:"document_date"`
	Reference          string            `json:"reference"`
	Description        string            `json:"description,omitempty"`
	Currency           string            `json:"currency"`
	IsPosted           bool              `json:"is_posted"`
	IsBalanced         bool              `json:"is_balanced"`
	TotalDebit         valueobject.Money `json:"total_debit"`
	TotalCredit        valueobject.Money `json:"total_credit"`
	LineItemCount      int               `json:"line_item_count"`
	CreatedBy          string            `json:"created_by"`
	CreatedAt          time.Time         `json:"created_at"`
	PostedAt           *time.Time        `json:"posted_at,omitempty"`
	PostedBy           string            `json:"posted_by,omitempty"`
	Version            int               `json:"version"`
}

// JournalEntryListResponse is one page of journal entry summaries
type JournalEntryListResponse struct {
	Items       []JournalEntrySummaryResponse `json:"items"`
	Total       int64                         `json:"total"`
	Page        int                           `json:"page"`
	PageSize    int                           `json:"page_size"`
	TotalPages  int                           `json:"total_pages"`
	HasNext     bool                          `json:"has_next"`
	HasPrevious bool                          `json:"has_previous"`
}

// ToJournalEntrySummaryResponse converts a domain JournalEntry to its list form.
// Totals of an entry whose lines disagree on currency fall back to zero.
func ToJournalEntrySummaryResponse(je *ledger.JournalEntry) JournalEntrySummaryResponse {
	debits, err := je.TotalDebitAmount()
	if err != nil {
		debits = valueobject.Zero(je.Currency)
	}
	credits, err := je.TotalCreditAmount()
	if err != nil {
		credits = valueobject.Zero(je.Currency)
	}
	return JournalEntrySummaryResponse{
		ID:                 je.ID,
		JournalEntryNumber: je.JournalEntryNumber,
		PostingDate:        je.PostingDate.Format(DateLayout),
		DocumentDate:       je.DocumentDate.Format(DateLayout),
		Reference:          je.Reference,
		Description:        je.Description,
		Currency:           je.Currency.String(),
		IsPosted:           je.IsPosted,
		IsBalanced:         je.IsBalanced(),
		TotalDebit:         debits,
		TotalCredit:        credits,
		LineItemCount:      je.LineItemCount(),
		CreatedBy:          je.CreatedBy,
		CreatedAt:          je.CreatedAt,
		PostedAt:           je.PostedAt,
		PostedBy:           je.PostedBy,
		Version:            je.StreamVersion(),
	}
}

// ToJournalEntryResponse converts a domain JournalEntry to JournalEntryResponse
func ToJournalEntryResponse(je *ledger.JournalEntry) JournalEntryResponse {
	items := make([]LineItemResponse, len(je.LineItems))
	for i := range je.LineItems {
		li := &je.LineItems[i]
		items[i] = LineItemResponse{
			ID:                   li.ID,
			AccountID:            li.AccountID,
			AccountNumber:        li.AccountNumber,
			DebitCreditIndicator: li.DebitCreditIndicator.String(),
			Amount:               li.Amount,
			Description:          li.Description,
			CreatedAt:            li.CreatedAt,
		}
	}
	return JournalEntryResponse{
		JournalEntrySummaryResponse: ToJournalEntrySummaryResponse(je),
		LineItems:                   items,
	}
}

// ToJournalEntryListResponse converts a page of entries
func ToJournalEntryListResponse(entries []*ledger.JournalEntry, total int64, filter shared.Filter) JournalEntryListResponse {
	summaries := make([]JournalEntrySummaryResponse, len(entries))
	for i, je := range entries {
		summaries[i] = ToJournalEntrySummaryResponse(je)
	}
	page := shared.NewPaginated(summaries, total, filter.Page, filter.PageSize)
	return JournalEntryListResponse{
		Items:       page.Items,
		Total:       page.Total,
		Page:        page.Page,
		PageSize:    page.PageSize,
		TotalPages:  page.TotalPages,
		HasNext:     page.HasNextPage(),
		HasPrevious: page.HasPreviousPage(),
	}
}
