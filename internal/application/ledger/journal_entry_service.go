package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JournalEntryService handles journal entry recording and posting
type JournalEntryService struct {
	entryRepo     ledger.JournalEntryRepository
	accountRepo   ledger.AccountRepository
	logger        *zap.Logger
	ledgerMetrics *telemetry.LedgerMetrics
}

// NewJournalEntryService creates a new JournalEntryService
func NewJournalEntryService(
	entryRepo ledger.JournalEntryRepository,
	accountRepo ledger.AccountRepository,
	logger *zap.Logger,
) *JournalEntryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalEntryService{
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *JournalEntryService) SetLedgerMetrics(lm *telemetry.LedgerMetrics) {
	s.ledgerMetrics = lm
}

// CreateJournalEntry records a new unposted entry.
// Every line must reference an existing, active, non-control account in the entry currency,
// and the entry must already balance with at least two lines.
func (s *JournalEntryService) CreateJournalEntry(ctx context.Context, req CreateJournalEntryRequest) (*JournalEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "create")
	defer span.End()

	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	postingDate, err := parseDate("posting_date", req.PostingDate)
	if err != nil {
		return nil, err
	}
	documentDate := postingDate
	if req.DocumentDate != "" {
		if documentDate, err = parseDate("document_date", req.DocumentDate); err != nil {
			return nil, err
		}
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = SystemUser
	}

	number, err := s.entryRepo.NextEntryNumber(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	je, err := ledger.NewJournalEntry(number, postingDate, documentDate, req.Reference, req.Description,
		currency.String(), createdBy)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrJournalEntryID, je.ID.String(),
		telemetry.SpanAttrJournalEntryNumber, number,
		telemetry.SpanAttrCurrency, currency.String(),
	)

	for i, line := range req.LineItems {
		account, err := s.accountRepo.FindByID(ctx, line.AccountID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if account == nil {
			return nil, shared.NewNotFoundError("account %s not found", line.AccountID)
		}
		if !account.CanBeUsedInTransactions() {
			return nil, shared.NewStateError("account %s cannot be used in transactions", account.AccountNumber).
				WithCode(ledger.CodeAccountNotUsable)
		}
		if account.Currency != currency {
			return nil, shared.NewCurrencyMismatchError(
				"account %s is kept in %s, entry is in %s", account.AccountNumber, account.Currency, currency)
		}

		indicator, err := ledger.ParseDebitCreditIndicator(line.DebitCreditIndicator)
		if err != nil {
			return nil, err
		}
		if !line.Amount.IsPositive() {
			return nil, shared.NewValidationError("line %d: amount must be positive", i+1)
		}
		amount, err := valueobject.NewMoney(line.Amount, currency)
		if err != nil {
			return nil, err
		}
		if _, err := je.AddLineItem(account.ID, account.AccountNumber, indicator, amount, line.Description); err != nil {
			return nil, err
		}
	}

	if err := je.ValidateForPosting(); err != nil {
		return nil, err
	}

	if err := s.entryRepo.Save(ctx, je); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.ledgerMetrics != nil {
		s.ledgerMetrics.RecordEntryCreated(ctx, currency.String(), je.LineItemCount())
	}
	s.logger.Info("Journal entry created",
		zap.String("journal_entry_id", je.ID.String()),
		zap.String("journal_entry_number", je.JournalEntryNumber),
		zap.Int("line_items", je.LineItemCount()),
		zap.String("created_by", createdBy),
	)

	resp := ToJournalEntryResponse(je)
	return &resp, nil
}

// PostJournalEntry finalizes an entry. Balance propagation happens asynchronously
// once the JournalEntryPosted event has been delivered.
func (s *JournalEntryService) PostJournalEntry(ctx context.Context, id uuid.UUID, postedBy string) (resp *JournalEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "post")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrJournalEntryID, id.String())

	if postedBy == "" {
		postedBy = SystemUser
	}

	start := time.Now()
	var currency string
	defer func() {
		if s.ledgerMetrics != nil {
			s.ledgerMetrics.RecordEntryPosted(ctx, currency, time.Since(start), err)
		}
	}()

	je, err := s.findEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	currency = je.Currency.String()

	if err = je.Post(postedBy); err != nil {
		return nil, err
	}
	if err = s.entryRepo.Update(ctx, je); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Journal entry posted",
		zap.String("journal_entry_id", je.ID.String()),
		zap.String("journal_entry_number", je.JournalEntryNumber),
		zap.String("posted_by", postedBy),
	)

	out := ToJournalEntryResponse(je)
	return &out, nil
}

// GetJournalEntry returns one entry with its line items
func (s *JournalEntryService) GetJournalEntry(ctx context.Context, id uuid.UUID) (*JournalEntryResponse, error) {
	je, err := s.findEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToJournalEntryResponse(je)
	return &resp, nil
}

// GetJournalEntryByNumber returns one entry by its JE-NNNNNN number
func (s *JournalEntryService) GetJournalEntryByNumber(ctx context.Context, number string) (*JournalEntryResponse, error) {
	je, err := s.entryRepo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if je == nil {
		return nil, shared.NewNotFoundError("journal entry %s not found", number)
	}
	resp := ToJournalEntryResponse(je)
	return &resp, nil
}

// GetJournalEntries lists one page of entries matching the query
func (s *JournalEntryService) GetJournalEntries(ctx context.Context, query JournalEntryQuery) (*JournalEntryListResponse, error) {
	filter, err := query.toFilter()
	if err != nil {
		return nil, err
	}
	entries, total, err := s.entryRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := ToJournalEntryListResponse(entries, total, filter.Filter)
	return &resp, nil
}

// GetUnpostedJournalEntries lists every entry still awaiting posting
func (s *JournalEntryService) GetUnpostedJournalEntries(ctx context.Context) ([]JournalEntrySummaryResponse, error) {
	entries, err := s.entryRepo.FindUnposted(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]JournalEntrySummaryResponse, len(entries))
	for i, je := range entries {
		out[i] = ToJournalEntrySummaryResponse(je)
	}
	return out, nil
}

func (s *JournalEntryService) findEntry(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	je, err := s.entryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if je == nil {
		return nil, shared.NewNotFoundError("journal entry %s not found", id)
	}
	return je, nil
}

// SystemUser is recorded as the actor when a request names none
const SystemUser = "system"

func (q JournalEntryQuery) toFilter() (ledger.JournalEntryFilter, error) {
	filter := ledger.DefaultJournalEntryFilter()
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	if q.FromDate != "" {
		from, err := parseDate("from_date", q.FromDate)
		if err != nil {
			return filter, err
		}
		filter.FromDate = &from
	}
	if q.ToDate != "" {
		to, err := parseDate("to_date", q.ToDate)
		if err != nil {
			return filter, err
		}
		filter.ToDate = &to
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return filter, shared.NewValidationError("to_date must not be before from_date")
	}
	if q.AccountID != "" {
		accountID, err := uuid.Parse(q.AccountID)
		if err != nil {
			return filter, shared.NewValidationError("invalid account id %q", q.AccountID)
		}
		filter.AccountID = &accountID
	}
	filter.IsPosted = q.IsPosted
	filter.Reference = q.Reference
	filter.CreatedBy = q.CreatedBy
	return filter, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, shared.NewValidationError("%s must be a date in YYYY-MM-DD form", field)
	}
	return t, nil
}
