package main

import (
	"strconv"
	"time"

	"bankoffice/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Search methods shared by the account and loan query endpoints.
const (
	searchByAccountID   = 0
	searchByAccountType = 1
	searchByBranch      = 2
	searchByCustomer    = 3
	searchByLoanID      = 4
)

// typeFields carries the extension-record columns of a create/update
// request. Which pointers must be set depends on the account type.
type typeFields struct {
	Rate           *decimal.Decimal
	FinancePlan    *string
	OverdraftLimit *decimal.Decimal
}

func (f typeFields) validFor(acType int) bool {
	switch acType {
	case models.AccountTypeSaving:
		return f.Rate != nil && f.FinancePlan != nil
	case models.AccountTypeChecking:
		return f.OverdraftLimit != nil
	default:
		return false
	}
}

// accountView is the joined shape every account endpoint returns: base row,
// extension columns (nil for the other type) and the full holder list.
type accountView struct {
	AccountID      string           `json:"account_id"`
	Branch         string           `json:"branch"`
	Type           int              `json:"type"`
	Balance        decimal.Decimal  `json:"balance"`
	OpenDate       string           `json:"open_date"`
	LastVisit      string           `json:"last_visit"`
	Rate           *decimal.Decimal `json:"rate"`
	FinancePlan    *string          `json:"finance_plan"`
	OverdraftLimit *decimal.Decimal `json:"overdraft_limit"`
	Holders        []string         `json:"holders"`
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// createAccount reserves a card number and inserts the account, its
// extension row and one holding per holder in a single transaction. On any
// failure the transaction rolls back and the card number goes back to the
// allocator's free set.
func createAccount(branch string, acType int, holders []string, f typeFields) (*accountView, error) {
	holders = dedupe(holders)
	if len(holders) == 0 {
		return nil, errEmptyPartyList
	}
	if !f.validFor(acType) {
		return nil, errMissingField
	}
	today := dateOnly(time.Now())
	cardID, err := cardAlloc.Reserve()
	if err != nil {
		return nil, err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		acc := models.Account{
			AccountID: cardID,
			Branch:    branch,
			Type:      acType,
			Balance:   decimal.Zero,
			OpenDate:  today,
			LastVisit: today,
		}
		if err := tx.Create(&acc).Error; err != nil {
			return err
		}
		switch acType {
		case models.AccountTypeSaving:
			ext := models.SavingAccount{AccountID: cardID, Rate: *f.Rate, FinancePlan: *f.FinancePlan}
			if err := tx.Create(&ext).Error; err != nil {
				return err
			}
		case models.AccountTypeChecking:
			ext := models.CheckingAccount{AccountID: cardID, OverdraftLimit: *f.OverdraftLimit}
			if err := tx.Create(&ext).Error; err != nil {
				return err
			}
		}
		for _, cust := range holders {
			rel := models.Holding{AccountID: cardID, CustomerID: cust, Type: acType, Branch: branch}
			if err := tx.Create(&rel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		cardAlloc.Release(cardID)
		return nil, classifyDBError(err)
	}
	return loadAccountView(cardID)
}

// updateAccount applies balance and extension-field changes and reconciles
// the holder list diff-and-preserve: holdings for unchanged customers are
// left untouched, missing ones are added, dropped ones deleted.
func updateAccount(accountID string, balance decimal.Decimal, f typeFields, holders []string) (*accountView, error) {
	holders = dedupe(holders)
	if len(holders) == 0 {
		return nil, errEmptyPartyList
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).First(&acc).Error; err != nil {
			return err
		}
		if !f.validFor(acc.Type) {
			return errMissingField
		}
		updates := map[string]any{"balance": balance, "last_visit": dateOnly(time.Now())}
		if err := tx.Model(&models.Account{}).Where("account_id = ?", accountID).Updates(updates).Error; err != nil {
			return err
		}
		switch acc.Type {
		case models.AccountTypeSaving:
			ext := map[string]any{"rate": *f.Rate, "finance_plan": *f.FinancePlan}
			if err := tx.Model(&models.SavingAccount{}).Where("account_id = ?", accountID).Updates(ext).Error; err != nil {
				return err
			}
		case models.AccountTypeChecking:
			if err := tx.Model(&models.CheckingAccount{}).Where("account_id = ?", accountID).
				Update("overdraft_limit", *f.OverdraftLimit).Error; err != nil {
				return err
			}
		}
		return reconcileHolders(tx, acc, holders)
	})
	if err != nil {
		return nil, classifyDBError(err)
	}
	return loadAccountView(accountID)
}

// reconcileHolders brings the account's holdings in line with want. Rows
// are locked so a concurrent unbind cannot slip between the read and the
// writes.
func reconcileHolders(tx *gorm.DB, acc models.Account, want []string) error {
	var existing []models.Holding
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", acc.AccountID).Find(&existing).Error; err != nil {
		return err
	}
	wanted := make(map[string]struct{}, len(want))
	for _, id := range want {
		wanted[id] = struct{}{}
	}
	current := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		current[h.CustomerID] = struct{}{}
		if _, keep := wanted[h.CustomerID]; !keep {
			if err := tx.Where("account_id = ? AND customer_id = ?", acc.AccountID, h.CustomerID).
				Delete(&models.Holding{}).Error; err != nil {
				return err
			}
		}
	}
	for _, id := range want {
		if _, have := current[id]; have {
			continue
		}
		rel := models.Holding{AccountID: acc.AccountID, CustomerID: id, Type: acc.Type, Branch: acc.Branch}
		if err := tx.Create(&rel).Error; err != nil {
			return err
		}
	}
	return nil
}

// deleteAccount removes the extension row, every holding and finally the
// account itself, in that dependency order, in one transaction.
func deleteAccount(accountID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).First(&acc).Error; err != nil {
			return err
		}
		switch acc.Type {
		case models.AccountTypeSaving:
			if err := tx.Where("account_id = ?", accountID).Delete(&models.SavingAccount{}).Error; err != nil {
				return err
			}
		case models.AccountTypeChecking:
			if err := tx.Where("account_id = ?", accountID).Delete(&models.CheckingAccount{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ?", accountID).Delete(&models.Account{}).Error
	})
	return classifyDBError(err)
}

// bindCustomer attaches one more holder to an existing account. Type and
// branch are copied from the account so the unique index can reject a
// second account of the same type at the same branch for the customer.
func bindCustomer(accountID, customerID string) error {
	var acc models.Account
	if err := db.Where("account_id = ?", accountID).First(&acc).Error; err != nil {
		return classifyDBError(err)
	}
	rel := models.Holding{AccountID: accountID, CustomerID: customerID, Type: acc.Type, Branch: acc.Branch}
	if err := db.Create(&rel).Error; err != nil {
		return classifyDBError(err)
	}
	return nil
}

// unbindCustomer detaches a holder. The holdings are locked for the whole
// check-then-delete so two concurrent unbinds cannot leave the account
// holderless.
func unbindCustomer(accountID, customerID string) error {
	var acc models.Account
	if err := db.Where("account_id = ?", accountID).First(&acc).Error; err != nil {
		return classifyDBError(err)
	}
	var cust models.Customer
	if err := db.Where("customer_id = ?", customerID).First(&cust).Error; err != nil {
		return classifyDBError(err)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var holds []models.Holding
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).Find(&holds).Error; err != nil {
			return err
		}
		bound := false
		for _, h := range holds {
			if h.CustomerID == customerID {
				bound = true
				break
			}
		}
		if !bound {
			return errNotBound
		}
		if len(holds) == 1 {
			return errLastHolder
		}
		return tx.Where("account_id = ? AND customer_id = ?", accountID, customerID).
			Delete(&models.Holding{}).Error
	})
	return classifyDBError(err)
}

// queryAccounts resolves a search request into joined account views.
func queryAccounts(method int, keyword string) ([]accountView, error) {
	var accounts []models.Account
	q := db.Model(&models.Account{})
	switch method {
	case searchByAccountID:
		q = q.Where("account_id = ?", keyword)
	case searchByAccountType:
		acType, err := strconv.Atoi(keyword)
		if err != nil || (acType != models.AccountTypeSaving && acType != models.AccountTypeChecking) {
			return nil, errUnknownSearch
		}
		q = q.Where("type = ?", acType)
	case searchByBranch:
		q = q.Where("branch = ?", keyword)
	case searchByCustomer:
		q = q.Joins("JOIN holdings ON holdings.account_id = accounts.account_id").
			Where("holdings.customer_id = ?", keyword)
	default:
		return nil, errUnknownSearch
	}
	if err := q.Order("account_id").Find(&accounts).Error; err != nil {
		return nil, classifyDBError(err)
	}
	views := make([]accountView, 0, len(accounts))
	for _, acc := range accounts {
		v, err := buildAccountView(acc)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func loadAccountView(accountID string) (*accountView, error) {
	var acc models.Account
	if err := db.Where("account_id = ?", accountID).First(&acc).Error; err != nil {
		return nil, classifyDBError(err)
	}
	return buildAccountView(acc)
}

func buildAccountView(acc models.Account) (*accountView, error) {
	v := accountView{
		AccountID: acc.AccountID,
		Branch:    acc.Branch,
		Type:      acc.Type,
		Balance:   acc.Balance,
		OpenDate:  acc.OpenDate.Format("2006-01-02"),
		LastVisit: acc.LastVisit.Format("2006-01-02"),
	}
	switch acc.Type {
	case models.AccountTypeSaving:
		var ext models.SavingAccount
		if err := db.Where("account_id = ?", acc.AccountID).First(&ext).Error; err != nil {
			return nil, classifyDBError(err)
		}
		v.Rate = &ext.Rate
		v.FinancePlan = &ext.FinancePlan
	case models.AccountTypeChecking:
		var ext models.CheckingAccount
		if err := db.Where("account_id = ?", acc.AccountID).First(&ext).Error; err != nil {
			return nil, classifyDBError(err)
		}
		v.OverdraftLimit = &ext.OverdraftLimit
	}
	var holders []string
	if err := db.Model(&models.Holding{}).Where("account_id = ?", acc.AccountID).
		Order("customer_id").Pluck("customer_id", &holders).Error; err != nil {
		return nil, classifyDBError(err)
	}
	v.Holders = holders
	return &v, nil
}
