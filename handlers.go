package main

import (
	"bankoffice/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/manage/login", loginHandler)
	r.POST("/manage/refresh", refreshHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.POST("/manage/logout", logoutHandler)

	authGroup.POST("/account/create", createAccountHandler)
	authGroup.POST("/account/modify", updateAccountHandler)
	authGroup.POST("/account/delete", deleteAccountHandler)
	authGroup.POST("/account/query", queryAccountHandler)
	authGroup.POST("/account/bind", bindHandler)
	authGroup.POST("/account/unbind", unbindHandler)

	authGroup.POST("/loan/create", issueLoanHandler)
	authGroup.POST("/loan/pay", disburseLoanHandler)
	authGroup.POST("/loan/delete", deleteLoanHandler)
	authGroup.POST("/loan/query", queryLoanHandler)
	authGroup.GET("/loan/get_all", getAllLoansHandler)
	authGroup.POST("/loan/get_all", getAllLoansHandler)

	authGroup.POST("/customer/add", addCustomerHandler)
	authGroup.POST("/customer/update", updateCustomerHandler)
	authGroup.POST("/customer/delete", deleteCustomerHandler)
	authGroup.POST("/customer/query", queryCustomerHandler)

	authGroup.GET("/branch/get_all", listBranchesHandler)
	authGroup.POST("/branch/get_all", listBranchesHandler)

	authGroup.POST("/stat/customer", customerStatHandler)
}

// respondServiceErr maps a service error onto the envelope.
func respondServiceErr(c *gin.Context, err error) {
	respondErr(c, errCode(err), err.Error())
}

func createAccountHandler(c *gin.Context) {
	var req struct {
		Branch         string           `json:"branch" binding:"required"`
		Type           *int             `json:"type" binding:"required"`
		Holders        []string         `json:"holders" binding:"required"`
		Rate           *decimal.Decimal `json:"rate"`
		FinancePlan    *string          `json:"finance_plan"`
		OverdraftLimit *decimal.Decimal `json:"overdraft_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	view, err := createAccount(req.Branch, *req.Type, req.Holders, typeFields{
		Rate:           req.Rate,
		FinancePlan:    req.FinancePlan,
		OverdraftLimit: req.OverdraftLimit,
	})
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, view)
}

func updateAccountHandler(c *gin.Context) {
	var req struct {
		AccountID      string           `json:"account_id" binding:"required"`
		Balance        *decimal.Decimal `json:"balance" binding:"required"`
		Holders        []string         `json:"holders" binding:"required"`
		Rate           *decimal.Decimal `json:"rate"`
		FinancePlan    *string          `json:"finance_plan"`
		OverdraftLimit *decimal.Decimal `json:"overdraft_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	view, err := updateAccount(req.AccountID, *req.Balance, typeFields{
		Rate:           req.Rate,
		FinancePlan:    req.FinancePlan,
		OverdraftLimit: req.OverdraftLimit,
	}, req.Holders)
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, view)
}

func deleteAccountHandler(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	if err := deleteAccount(req.AccountID); err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, nil)
}

func queryAccountHandler(c *gin.Context) {
	var req struct {
		Method  *int   `json:"method" binding:"required"`
		Keyword string `json:"keyword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	views, err := queryAccounts(*req.Method, req.Keyword)
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, views)
}

func bindHandler(c *gin.Context) {
	var req struct {
		AccountID  string `json:"account_id" binding:"required"`
		CustomerID string `json:"customer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	if err := bindCustomer(req.AccountID, req.CustomerID); err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, nil)
}

func unbindHandler(c *gin.Context) {
	var req struct {
		AccountID  string `json:"account_id" binding:"required"`
		CustomerID string `json:"customer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	if err := unbindCustomer(req.AccountID, req.CustomerID); err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, nil)
}

func issueLoanHandler(c *gin.Context) {
	var req struct {
		Branch    string           `json:"branch" binding:"required"`
		Principal *decimal.Decimal `json:"principal" binding:"required"`
		Borrowers []string         `json:"borrowers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	view, err := issueLoan(req.Branch, *req.Principal, req.Borrowers)
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, view)
}

func disburseLoanHandler(c *gin.Context) {
	var req struct {
		LoanID string           `json:"loan_id" binding:"required"`
		Amount *decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	view, err := disburseLoan(req.LoanID, *req.Amount)
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, view)
}

func deleteLoanHandler(c *gin.Context) {
	var req struct {
		LoanID string `json:"loan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	if err := deleteLoan(req.LoanID); err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, nil)
}

func queryLoanHandler(c *gin.Context) {
	var req struct {
		Method  *int   `json:"method" binding:"required"`
		Keyword string `json:"keyword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	views, err := queryLoans(*req.Method, req.Keyword)
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, views)
}

func getAllLoansHandler(c *gin.Context) {
	views, err := getAllLoans()
	if err != nil {
		respondServiceErr(c, err)
		return
	}
	respondOK(c, views)
}

func addCustomerHandler(c *gin.Context) {
	var req struct {
		CustomerID      string `json:"customer_id" binding:"required"`
		Name            string `json:"name" binding:"required"`
		Phone           string `json:"phone"`
		Address         string `json:"address"`
		ContactName     string `json:"contact_name"`
		ContactPhone    string `json:"contact_phone"`
		ContactEmail    string `json:"contact_email"`
		ContactRelation string `json:"contact_relation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	cust := models.Customer{
		CustomerID:      req.CustomerID,
		Name:            req.Name,
		Phone:           req.Phone,
		Address:         req.Address,
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		ContactRelation: req.ContactRelation,
	}
	if err := db.Create(&cust).Error; err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	respondOK(c, cust)
}

func updateCustomerHandler(c *gin.Context) {
	var req struct {
		CustomerID      string  `json:"customer_id" binding:"required"`
		Name            *string `json:"name"`
		Phone           *string `json:"phone"`
		Address         *string `json:"address"`
		ContactName     *string `json:"contact_name"`
		ContactPhone    *string `json:"contact_phone"`
		ContactEmail    *string `json:"contact_email"`
		ContactRelation *string `json:"contact_relation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	var cust models.Customer
	if err := db.Where("customer_id = ?", req.CustomerID).First(&cust).Error; err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	// CustomerID itself is immutable; only the remaining fields change.
	updates := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	set("name", req.Name)
	set("phone", req.Phone)
	set("address", req.Address)
	set("contact_name", req.ContactName)
	set("contact_phone", req.ContactPhone)
	set("contact_email", req.ContactEmail)
	set("contact_relation", req.ContactRelation)
	if len(updates) > 0 {
		if err := db.Model(&models.Customer{}).Where("customer_id = ?", req.CustomerID).
			Updates(updates).Error; err != nil {
			respondServiceErr(c, classifyDBError(err))
			return
		}
	}
	respondOK(c, nil)
}

func deleteCustomerHandler(c *gin.Context) {
	var req struct {
		CustomerID string `json:"customer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	var cust models.Customer
	if err := db.Where("customer_id = ?", req.CustomerID).First(&cust).Error; err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	// Holdings and loan relations keep the row referenced; the FK error maps
	// to codeRowReferenced.
	if err := db.Delete(&cust).Error; err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	respondOK(c, nil)
}

// Customer search modes.
const (
	customerSearchByID    = 0
	customerSearchByName  = 1
	customerSearchByPhone = 2
)

func queryCustomerHandler(c *gin.Context) {
	var req struct {
		Exact   bool   `json:"exact"`
		Mode    *int   `json:"mode" binding:"required"`
		Keyword string `json:"keyword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	var column string
	switch *req.Mode {
	case customerSearchByID:
		column = "customer_id"
	case customerSearchByName:
		column = "name"
	case customerSearchByPhone:
		column = "phone"
	default:
		respondErr(c, codeUnknownMethod, "unknown search mode")
		return
	}
	var customers []models.Customer
	q := db.Model(&models.Customer{})
	if req.Exact {
		q = q.Where(column+" = ?", req.Keyword)
	} else {
		q = q.Where(column+" LIKE ?", "%"+req.Keyword+"%")
	}
	if err := q.Order("customer_id").Find(&customers).Error; err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	respondOK(c, customers)
}

func listBranchesHandler(c *gin.Context) {
	var branches []models.Branch
	if err := db.Order("name").Find(&branches).Error; err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	respondOK(c, branches)
}

// customerStatHandler returns per-day counts of customers created in an
// inclusive date range.
func customerStatHandler(c *gin.Context) {
	var req struct {
		DateFrom string `json:"date_from" binding:"required"`
		DateTo   string `json:"date_to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	type row struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}
	results := []row{}
	rows, err := db.Model(&models.Customer{}).
		Select("to_char(created_at, 'YYYY-MM-DD') as date, count(*) as count").
		Where("created_at >= ? AND created_at < (?::date + 1)", req.DateFrom, req.DateTo).
		Group("date").Order("date").Rows()
	if err != nil {
		respondServiceErr(c, classifyDBError(err))
		return
	}
	defer rows.Close()
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.Date, &r.Count); err != nil {
			respondServiceErr(c, classifyDBError(err))
			return
		}
		results = append(results, r)
	}
	respondOK(c, results)
}
