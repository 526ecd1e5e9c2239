package handler

import (
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// AccountHandler serves the chart of accounts
type AccountHandler struct {
	BaseHandler
	accountService *ledgerapp.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *ledgerapp.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// Create godoc
// @ID           createLedgerAccount
// @Summary      Open an account
// @Description  Add an account to the chart of accounts. Child accounts must hang under a control account of the same currency.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request body ledgerapp.CreateAccountRequest true "Account"
// @Success      201 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /ledger/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req ledgerapp.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, account)
}

// List godoc
// @ID           listLedgerAccounts
// @Summary      List accounts
// @Tags         accounts
// @Produce      json
// @Param        account_type query string false "ASSET, LIABILITY, EQUITY, REVENUE or EXPENSE"
// @Param        active_only query bool false "Only active accounts"
// @Param        parent_account_id query string false "Only direct children of this account" format(uuid)
// @Param        include_children query bool false "Attach direct children to each account"
// @Success      200 {object} APIResponse[[]ledgerapp.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /ledger/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	var query ledgerapp.AccountQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	accounts, err := h.accountService.GetAccounts(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, accounts)
}

// GetByID godoc
// @ID           getLedgerAccount
// @Summary      Get an account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /ledger/accounts/{id} [get]
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, ok := h.parseIDParam(c, "account")
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}

// GetHierarchy godoc
// @ID           getLedgerAccountHierarchy
// @Summary      Get the ancestor chain of an account
// @Description  Returns the account and its ancestors, root first
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[[]ledgerapp.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /ledger/accounts/{id}/hierarchy [get]
func (h *AccountHandler) GetHierarchy(c *gin.Context) {
	id, ok := h.parseIDParam(c, "account")
	if !ok {
		return
	}

	chain, err := h.accountService.GetAccountHierarchy(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, chain)
}

// Update godoc
// @ID           updateLedgerAccount
// @Summary      Rename an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        request body ledgerapp.UpdateAccountInfoRequest true "Name and description"
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /ledger/accounts/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := h.parseIDParam(c, "account")
	if !ok {
		return
	}

	var req ledgerapp.UpdateAccountInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.accountService.UpdateAccountInfo(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}

// Activate godoc
// @ID           activateLedgerAccount
// @Summary      Activate an account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /ledger/accounts/{id}/activate [post]
func (h *AccountHandler) Activate(c *gin.Context) {
	id, ok := h.parseIDParam(c, "account")
	if !ok {
		return
	}

	account, err := h.accountService.ActivateAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}

// Deactivate godoc
// @ID           deactivateLedgerAccount
// @Summary      Deactivate an account
// @Description  Soft-deactivates the account; it can no longer be used in new journal entries
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /ledger/accounts/{id}/deactivate [post]
func (h *AccountHandler) Deactivate(c *gin.Context) {
	id, ok := h.parseIDParam(c, "account")
	if !ok {
		return
	}

	account, err := h.accountService.DeactivateAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}
