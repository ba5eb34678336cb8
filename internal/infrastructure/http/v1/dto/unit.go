package dto

import (
	"condo/internal/domain/charge"
	"condo/internal/domain/fund"
	"condo/internal/domain/occupancy"
)

// FundResponse is the ledger view of a unit.
type FundResponse struct {
	Balance fund.Balance  `json:"balance"`
	Net     int64         `json:"net"`
	Entries []*fund.Entry `json:"entries"`
}

// NewFundResponse builds the ledger view.
func NewFundResponse(st fund.Statement) FundResponse {
	entries := st.Entries
	if entries == nil {
		entries = []*fund.Entry{}
	}
	return FundResponse{Balance: st.Balance, Net: st.Balance.Net().Int64(), Entries: entries}
}

// HistoryResponse lists residence intervals of a unit.
type HistoryResponse struct {
	Items []*occupancy.Residence `json:"items"`
}

// ChargesResponse lists open charges of a unit.
type ChargesResponse struct {
	Items []*charge.UnifiedCharge `json:"items"`
	Total int64                   `json:"total"`
}

// NewChargesResponse sums the outstanding totals.
func NewChargesResponse(items []*charge.UnifiedCharge) ChargesResponse {
	resp := ChargesResponse{Items: items}
	if resp.Items == nil {
		resp.Items = []*charge.UnifiedCharge{}
	}
	for _, c := range items {
		resp.Total += c.TotalChargeMonth.Int64()
	}
	return resp
}
