package handlers

import (
	"net/http"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

// ValidateWallet handles POST /api/validate/wallet/
func ValidateWallet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	resp := models.WalletValidation{Address: body.Address}
	if formatted, err := chain.FormatAddress(body.Address); err == nil {
		resp.Valid = true
		resp.Formatted = formatted
	}
	respondJSON(w, http.StatusOK, resp)
}

// ValidateTransaction handles POST /api/validate/transaction/
func ValidateTransaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TransactionHash string `json:"transaction_hash"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.TransactionHash == "" {
		respondError(w, http.StatusBadRequest, "transaction_hash is required")
		return
	}
	resp := models.TransactionValidation{TransactionHash: body.TransactionHash}
	if formatted, err := chain.FormatTxHash(body.TransactionHash); err == nil {
		resp.Valid = true
		resp.Formatted = formatted
	}
	respondJSON(w, http.StatusOK, resp)
}
