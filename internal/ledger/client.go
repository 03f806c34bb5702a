// Package ledger is a client for the donation ledger REST API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

const maxErrorBody = 64 << 10

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the ledger.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type OrganizationQuery struct {
	Category string
	Featured *bool
	Verified *bool
	Search   string
	Page     int
	PageSize int
}

type DonationQuery struct {
	OrganizationID string
	DonorWallet    string
	Status         string
	Page           int
	PageSize       int
}

type OrganizationList struct {
	Results []models.Organization `json:"results"`
	Count   int64                 `json:"count"`
}

type DonationList struct {
	Results []models.Donation `json:"results"`
	Count   int64             `json:"count"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

func New(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("component", "ledger"),
	}
}

func (c *Client) ListOrganizations(ctx context.Context, q OrganizationQuery) (*OrganizationList, error) {
	params := url.Values{}
	setString(params, "category", q.Category)
	setBool(params, "featured", q.Featured)
	setBool(params, "verified", q.Verified)
	setString(params, "search", q.Search)
	setInt(params, "page", q.Page)
	setInt(params, "page_size", q.PageSize)

	var out OrganizationList
	if err := c.do(ctx, http.MethodGet, "/organizations/", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var out models.Organization
	if err := c.do(ctx, http.MethodGet, "/organizations/"+url.PathEscape(id)+"/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	var out models.Organization
	if err := c.do(ctx, http.MethodPost, "/organizations/", nil, org, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrganization(ctx context.Context, id string, org *models.Organization) (*models.Organization, error) {
	var out models.Organization
	if err := c.do(ctx, http.MethodPut, "/organizations/"+url.PathEscape(id)+"/", nil, org, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDonations(ctx context.Context, q DonationQuery) (*DonationList, error) {
	params := url.Values{}
	setString(params, "organization", q.OrganizationID)
	setString(params, "donor_wallet", q.DonorWallet)
	setString(params, "status", q.Status)
	setInt(params, "page", q.Page)
	setInt(params, "page_size", q.PageSize)

	var out DonationList
	if err := c.do(ctx, http.MethodGet, "/donations/", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	var out models.Donation
	if err := c.do(ctx, http.MethodGet, "/donations/"+url.PathEscape(id)+"/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDonation records a pending donation.
func (c *Client) CreateDonation(ctx context.Context, req models.CreateDonationRequest) (*models.Donation, error) {
	var out models.Donation
	if err := c.do(ctx, http.MethodPost, "/donations/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteDonation asks the ledger to mark a donation completed with the
// given transaction hash.
func (c *Client) CompleteDonation(ctx context.Context, donationID, txHash string) (*models.Donation, error) {
	body := models.CompleteDonationRequest{DonationID: donationID, TransactionHash: txHash}
	var out models.Donation
	if err := c.do(ctx, http.MethodPost, "/donations/complete/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateWallet(ctx context.Context, address string) (*models.WalletValidation, error) {
	var out models.WalletValidation
	body := map[string]string{"address": address}
	if err := c.do(ctx, http.MethodPost, "/validate/wallet/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateTransaction(ctx context.Context, txHash string) (*models.TransactionValidation, error) {
	var out models.TransactionValidation
	body := map[string]string{"transaction_hash": txHash}
	if err := c.do(ctx, http.MethodPost, "/validate/transaction/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var out models.Stats
	if err := c.do(ctx, http.MethodGet, "/stats/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var out models.Health
	if err := c.do(ctx, http.MethodGet, "/health/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"method": method, "path": path}).Warn("ledger request failed")
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn(apiErr.Message)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = fmt.Sprintf("API Error: %d", resp.StatusCode)
	}
	return apiErr
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setBool(v url.Values, key string, value *bool) {
	if value != nil {
		v.Set(key, strconv.FormatBool(*value))
	}
}

func setInt(v url.Values, key string, value int) {
	if value > 0 {
		v.Set(key, strconv.Itoa(value))
	}
}
