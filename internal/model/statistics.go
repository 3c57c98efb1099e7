package model

import "github.com/shopspring/decimal"

// StatisticsResponse summarises the workflow for one year, or one quarter of it
type StatisticsResponse struct {
	Year          int              `json:"ano"`
	Quarter       int              `json:"trimestre,omitempty"`
	TotalEntries  int64            `json:"total_entries"`
	ByStatus      map[string]int64 `json:"by_status"`
	DeclaredTotal decimal.Decimal  `json:"declared_total"`
	SentTotal     decimal.Decimal  `json:"sent_total"`
	TopCompanies  []CompanyRanking `json:"top_companies"`
}

// CompanyRanking is a company ordered by the profit it declared in the period
type CompanyRanking struct {
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_nome"`
	CNPJ        string          `json:"cnpj"`
	Entries     int             `json:"entries"`
	Total       decimal.Decimal `json:"total"`
}
