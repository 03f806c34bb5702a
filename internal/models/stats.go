package models

import "encoding/json"

// Stats aggregates completed donations across the platform.
type Stats struct {
	TotalAmount        json.Number `json:"total_amount_sbc"`
	TotalAmountUSD     json.Number `json:"total_amount_usd"`
	TotalDonations     int64       `json:"total_donations"`
	UniqueDonors       int64       `json:"unique_donors"`
	OrganizationsCount int64       `json:"organizations_count"`
}

type Health struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
	Version           string `json:"version"`
}

type WalletValidation struct {
	Valid     bool   `json:"valid"`
	Address   string `json:"address"`
	Formatted string `json:"formatted,omitempty"`
}

type TransactionValidation struct {
	Valid           bool   `json:"valid"`
	TransactionHash string `json:"transaction_hash"`
	Formatted       string `json:"formatted,omitempty"`
}
