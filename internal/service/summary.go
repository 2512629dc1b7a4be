package service

import (
	"github.com/shopspring/decimal"

	"bizdash/backend/internal/domain"
)

// ComputeSummary derives the dashboard figures. Only income and expense
// transactions move the totals; refunds are tracked but not netted.
func ComputeSummary(transactions []domain.Transaction, customers []domain.Customer, products []domain.Product, suppliers []domain.Supplier) domain.Summary {
	summary := domain.Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		CustomerCount: len(customers),
		ProductCount:  len(products),
		SupplierCount: len(suppliers),
	}
	for _, tx := range transactions {
		switch tx.Type {
		case domain.TransactionIncome:
			summary.TotalIncome = summary.TotalIncome.Add(tx.Amount)
		case domain.TransactionExpense:
			summary.TotalExpenses = summary.TotalExpenses.Add(tx.Amount)
		}
		if tx.Status == domain.StatusPending {
			summary.PendingTransactions++
		}
	}
	summary.Balance = summary.TotalIncome.Sub(summary.TotalExpenses)
	for _, p := range products {
		if p.LowStock() {
			summary.LowStockCount++
		}
	}
	return summary
}
