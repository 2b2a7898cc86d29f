package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbt "splitledger/db/db"
	"splitledger/ledger"
	"splitledger/service"
)

type ledgerHandler struct {
	svc *service.LedgerService
}

// writeError maps the service error taxonomy onto HTTP statuses. Unknown
// errors are logged and hidden behind a generic 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("unhandled service error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

type groupResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	MemberIDs []string  `json:"memberIds"`
}

func toGroupResponse(g *dbt.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
		MemberIDs: g.MemberIDs,
	}
}

func (h *ledgerHandler) createGroup(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	group, err := h.svc.CreateGroup(actingUser(c), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGroupResponse(group))
}

func (h *ledgerHandler) getGroup(c *gin.Context) {
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	group, err := h.svc.GetGroup(actingUser(c), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(group))
}

func (h *ledgerHandler) addGroupMember(c *gin.Context) {
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	group, err := h.svc.AddGroupMember(actingUser(c), groupID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(group))
}

type userAmountDTO struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type userPercentageDTO struct {
	UserID     string          `json:"userId"`
	Percentage decimal.Decimal `json:"percentage"`
}

type userSharesDTO struct {
	UserID string `json:"userId"`
	Shares int    `json:"shares"`
}

type expenseRequest struct {
	Description  string              `json:"description"`
	Amount       decimal.Decimal     `json:"amount"`
	SplitPolicy  string              `json:"splitPolicy" binding:"required"`
	Participants []string            `json:"participants"`
	Amounts      []userAmountDTO     `json:"amounts"`
	Percentages  []userPercentageDTO `json:"percentages"`
	Shares       []userSharesDTO     `json:"shares"`
	PaidBy       []userAmountDTO     `json:"paidBy" binding:"required"`
}

func (r expenseRequest) toInput() (service.ExpenseInput, error) {
	policy, err := ledger.ParseSplitPolicy(r.SplitPolicy)
	if err != nil {
		return service.ExpenseInput{}, err
	}

	details := ledger.SplitDetails{}
	for _, a := range r.Amounts {
		details.Amounts = append(details.Amounts, ledger.UserAmount{UserID: a.UserID, Amount: a.Amount})
	}
	for _, p := range r.Percentages {
		details.Percentages = append(details.Percentages, ledger.UserPercentage{UserID: p.UserID, Percentage: p.Percentage})
	}
	for _, s := range r.Shares {
		details.Shares = append(details.Shares, ledger.UserShares{UserID: s.UserID, Shares: s.Shares})
	}

	paidBy := make([]ledger.PayerContribution, 0, len(r.PaidBy))
	for _, p := range r.PaidBy {
		paidBy = append(paidBy, ledger.PayerContribution{UserID: p.UserID, Amount: p.Amount})
	}

	return service.ExpenseInput{
		Description:  r.Description,
		Amount:       r.Amount,
		Policy:       policy,
		Participants: r.Participants,
		Details:      details,
		PaidBy:       paidBy,
	}, nil
}

type splitDTO struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type expenseResponse struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.UUID       `json:"groupId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	SplitPolicy string          `json:"splitPolicy"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	PaidBy      []userAmountDTO `json:"paidBy"`
	Splits      []splitDTO      `json:"splits"`
}

func toExpenseResponse(e *dbt.Expense) expenseResponse {
	resp := expenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount,
		SplitPolicy: e.Policy.String(),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
	for _, p := range e.Payers {
		resp.PaidBy = append(resp.PaidBy, userAmountDTO{UserID: p.UserID, Amount: p.Amount})
	}
	for _, s := range e.Splits {
		resp.Splits = append(resp.Splits, splitDTO{UserID: s.UserID, Amount: s.Amount})
	}
	return resp
}

func (h *ledgerHandler) createExpense(c *gin.Context) {
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(c, err)
		return
	}
	expense, err := h.svc.CreateExpense(actingUser(c), groupID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toExpenseResponse(expense))
}

func (h *ledgerHandler) getExpense(c *gin.Context) {
	expenseID, ok := pathUUID(c, "expenseId")
	if !ok {
		return
	}
	expense, err := h.svc.GetExpense(actingUser(c), expenseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResponse(expense))
}

func (h *ledgerHandler) updateExpense(c *gin.Context) {
	expenseID, ok := pathUUID(c, "expenseId")
	if !ok {
		return
	}
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(c, err)
		return
	}
	expense, err := h.svc.UpdateExpense(actingUser(c), expenseID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResponse(expense))
}

func (h *ledgerHandler) deleteExpense(c *gin.Context) {
	expenseID, ok := pathUUID(c, "expenseId")
	if !ok {
		return
	}
	if err := h.svc.DeleteExpense(actingUser(c), expenseID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ledgerHandler) overallBalance(c *gin.Context) {
	balance, err := h.svc.OverallBalance(actingUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := h.svc.ActivityCount(actingUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"netBalance":       balance.NetBalance,
		"totalOwedToYou":   balance.TotalOwedToYou,
		"totalYouOwe":      balance.TotalYouOwe,
		"transactionCount": count,
	})
}

func (h *ledgerHandler) groupBalances(c *gin.Context) {
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	balances, err := h.svc.GroupBalances(actingUser(c), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	net := decimal.Zero
	if b, ok := balances[actingUser(c)]; ok {
		net = b
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances, "netBalanceForUser": net})
}

type paymentInstructionDTO struct {
	FromUserID string          `json:"fromUserId"`
	ToUserID   string          `json:"toUserId"`
	Amount     decimal.Decimal `json:"amount"`
}

func (h *ledgerHandler) simplifiedDebts(c *gin.Context) {
	groupID, ok := pathUUID(c, "groupId")
	if !ok {
		return
	}
	plan, err := h.svc.SimplifiedDebts(actingUser(c), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	payments := make([]paymentInstructionDTO, 0, len(plan))
	for _, p := range plan {
		payments = append(payments, paymentInstructionDTO{FromUserID: p.FromUserID, ToUserID: p.ToUserID, Amount: p.Amount})
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

type transactionResponse struct {
	ID         uuid.UUID       `json:"id"`
	ExpenseID  string          `json:"expenseId"`
	GroupID    uuid.UUID       `json:"groupId"`
	FromUserID string          `json:"fromUserId"`
	ToUserID   string          `json:"toUserId"`
	Amount     decimal.Decimal `json:"amount"`
	IsSettled  bool            `json:"isSettled"`
	CreatedAt  time.Time       `json:"createdAt"`
	SettledAt  *time.Time      `json:"settledAt,omitempty"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:         t.ID,
		ExpenseID:  t.ExpenseID,
		GroupID:    t.GroupID,
		FromUserID: t.FromUserID,
		ToUserID:   t.ToUserID,
		Amount:     t.Amount,
		IsSettled:  t.IsSettled,
		CreatedAt:  t.CreatedAt,
		SettledAt:  t.SettledAt,
	}
}

func (h *ledgerHandler) recordPayment(c *gin.Context) {
	var req struct {
		GroupID     uuid.UUID       `json:"groupId" binding:"required"`
		FromUserID  string          `json:"fromUserId" binding:"required"`
		ToUserID    string          `json:"toUserId" binding:"required"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settlement, err := h.svc.RecordPayment(actingUser(c), req.GroupID, req.FromUserID, req.ToUserID, req.Amount, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(*settlement))
}

func (h *ledgerHandler) settlementHistory(c *gin.Context) {
	history, err := h.svc.SettlementHistory(actingUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	settlements := make([]transactionResponse, 0, len(history))
	for _, t := range history {
		settlements = append(settlements, toTransactionResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"settlements": settlements})
}

func (h *ledgerHandler) paymentLink(c *gin.Context) {
	app := c.Query("app")
	recipient := c.Query("recipient")
	if app == "" || recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "app and recipient query parameters are required"})
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}
	link := ledger.PaymentDeepLink(app, recipient, amount, c.Query("description"))
	c.JSON(http.StatusOK, gin.H{"link": link})
}
