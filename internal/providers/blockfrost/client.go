// Package blockfrost implements the chain-data provider client used by the
// online holder analyzer: holder lists, stake credentials, transaction
// history and UTxO detail, all behind a project credential header.
package blockfrost

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/adapter"
)

const (
	pageSize = 100
	// maxHolderPages bounds pagination over very widely held assets
	maxHolderPages = 50
)

// Asset is one asset minted under a policy.
type Asset struct {
	Asset    string `json:"asset"` // concatenated policy+name hex
	Quantity string `json:"quantity"`
}

// AssetAddress is one holder of an asset.
type AssetAddress struct {
	Address  string `json:"address"`
	Quantity string `json:"quantity"`
}

// AddressDetail describes one address, including its stake association.
type AddressDetail struct {
	Address      string  `json:"address"`
	StakeAddress *string `json:"stake_address"`
	Script       bool    `json:"script"`
}

// Transaction is one entry of an address or asset transaction history.
type Transaction struct {
	TxHash      string `json:"tx_hash"`
	BlockHeight int64  `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
}

// TxAmount is one unit quantity inside a transaction input or output.
type TxAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// TxIO is one input or output of a transaction.
type TxIO struct {
	Address string     `json:"address"`
	Amount  []TxAmount `json:"amount"`
}

// TxUTxOs is the full UTxO detail of a transaction.
type TxUTxOs struct {
	Hash    string `json:"hash"`
	Inputs  []TxIO `json:"inputs"`
	Outputs []TxIO `json:"outputs"`
}

// Client defines an interface for chain-data provider operations to enable mocking
type Client interface {
	// AssetsByPolicy lists assets minted under a policy
	AssetsByPolicy(ctx context.Context, policyID string) ([]Asset, error)
	// AssetAddresses lists all holders of an asset, following pagination
	AssetAddresses(ctx context.Context, unit string) ([]AssetAddress, error)
	// AddressDetail fetches stake association and script flag for an address
	AddressDetail(ctx context.Context, address string) (*AddressDetail, error)
	// AddressTransactions fetches recent transactions of an address, newest first
	AddressTransactions(ctx context.Context, address string, count int) ([]Transaction, error)
	// AssetTransactions fetches recent transactions moving an asset, newest first
	AssetTransactions(ctx context.Context, unit string, count int) ([]Transaction, error)
	// TransactionUTxOs fetches the full input/output detail of a transaction
	TransactionUTxOs(ctx context.Context, txHash string) (*TxUTxOs, error)
}

type client struct {
	baseURL    string
	projectID  string
	httpClient adapter.HTTPClient
}

// NewClient creates a new chain-data provider client
func NewClient(baseURL, projectID string, httpClient adapter.HTTPClient) Client {
	return &client{
		baseURL:    baseURL,
		projectID:  projectID,
		httpClient: httpClient,
	}
}

func (c *client) headers() map[string]string {
	return map[string]string{"project_id": c.projectID}
}

// AssetsByPolicy lists assets minted under a policy
func (c *client) AssetsByPolicy(ctx context.Context, policyID string) ([]Asset, error) {
	endpoint := fmt.Sprintf("%s/assets/policy/%s", c.baseURL, url.PathEscape(policyID))

	var assets []Asset
	if err := c.httpClient.Get(ctx, endpoint, c.headers(), &assets); err != nil {
		return nil, fmt.Errorf("failed to get assets for policy %s: %w", policyID, err)
	}

	return assets, nil
}

// AssetAddresses lists all holders of an asset, following pagination until a
// short page or the page bound is reached
func (c *client) AssetAddresses(ctx context.Context, unit string) ([]AssetAddress, error) {
	var all []AssetAddress

	for page := 1; page <= maxHolderPages; page++ {
		endpoint := fmt.Sprintf("%s/assets/%s/addresses?count=%d&page=%d",
			c.baseURL, url.PathEscape(unit), pageSize, page)

		var batch []AssetAddress
		if err := c.httpClient.Get(ctx, endpoint, c.headers(), &batch); err != nil {
			return nil, fmt.Errorf("failed to get holders of %s (page %d): %w", unit, page, err)
		}

		all = append(all, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	return all, nil
}

// AddressDetail fetches stake association and script flag for an address
func (c *client) AddressDetail(ctx context.Context, address string) (*AddressDetail, error) {
	endpoint := fmt.Sprintf("%s/addresses/%s", c.baseURL, url.PathEscape(address))

	var detail AddressDetail
	if err := c.httpClient.Get(ctx, endpoint, c.headers(), &detail); err != nil {
		return nil, fmt.Errorf("failed to get address detail: %w", err)
	}

	return &detail, nil
}

// AddressTransactions fetches recent transactions of an address, newest first
func (c *client) AddressTransactions(ctx context.Context, address string, count int) ([]Transaction, error) {
	endpoint := fmt.Sprintf("%s/addresses/%s/transactions?order=desc&count=%s",
		c.baseURL, url.PathEscape(address), strconv.Itoa(count))

	var txs []Transaction
	if err := c.httpClient.Get(ctx, endpoint, c.headers(), &txs); err != nil {
		return nil, fmt.Errorf("failed to get transactions for address: %w", err)
	}

	return txs, nil
}

// AssetTransactions fetches recent transactions moving an asset, newest first
func (c *client) AssetTransactions(ctx context.Context, unit string, count int) ([]Transaction, error) {
	endpoint := fmt.Sprintf("%s/assets/%s/transactions?order=desc&count=%s",
		c.baseURL, url.PathEscape(unit), strconv.Itoa(count))

	var txs []Transaction
	if err := c.httpClient.Get(ctx, endpoint, c.headers(), &txs); err != nil {
		return nil, fmt.Errorf("failed to get transactions for asset %s: %w", unit, err)
	}

	return txs, nil
}

// TransactionUTxOs fetches the full input/output detail of a transaction
func (c *client) TransactionUTxOs(ctx context.Context, txHash string) (*TxUTxOs, error) {
	endpoint := fmt.Sprintf("%s/txs/%s/utxos", c.baseURL, url.PathEscape(txHash))

	var utxos TxUTxOs
	if err := c.httpClient.Get(ctx, endpoint, c.headers(), &utxos); err != nil {
		return nil, fmt.Errorf("failed to get utxos for tx %s: %w", txHash, err)
	}

	return &utxos, nil
}
