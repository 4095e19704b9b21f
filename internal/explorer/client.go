// Package explorer wraps a paginated etherscan-style REST API. All numeric
// fields arrive as strings and are parsed as arbitrary-precision integers;
// nothing in this package goes through floating point.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenscope/internal/model"
	"tokenscope/internal/throttle"
)

// TransferTopic is the keccak hash of Transfer(address,address,uint256).
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// Client talks to the explorer API through a shared rate limiter.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *throttle.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds an explorer client. The limiter is shared across all
// concurrent computations in the process.
func NewClient(baseURL, apiKey string, limiter *throttle.Limiter, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("explorer base url is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{},
		limiter: limiter,
		timeout: timeout,
		logger:  logger,
	}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) get(ctx context.Context, params url.Values, result interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: http 400: %s", ErrRangeTooLarge, truncate(body))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: http 429", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer http %d: %s", resp.StatusCode, truncate(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if env.Status == "0" {
		if err := classify(env); err != nil {
			return err
		}
		// "No records found" style responses: empty result, not an error.
		return nil
	}

	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func classify(env envelope) error {
	var resultText string
	_ = json.Unmarshal(env.Result, &resultText)
	combined := strings.ToLower(env.Message + " " + resultText)

	switch {
	case strings.Contains(combined, "no records found"),
		strings.Contains(combined, "no transactions found"):
		return nil
	case strings.Contains(combined, "too large"),
		strings.Contains(combined, "reduce the range"),
		strings.Contains(combined, "smaller result"):
		return fmt.Errorf("%w: %s", ErrRangeTooLarge, env.Message)
	case strings.Contains(combined, "rate limit"):
		return fmt.Errorf("%w: %s", ErrRateLimited, env.Message)
	default:
		return &APIError{Status: env.Status, Message: env.Message, Result: resultText}
	}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}

type logEntry struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	LogIndex        string   `json:"logIndex"`
	TransactionHash string   `json:"transactionHash"`
}

// TransferLogs fetches one page of Transfer logs for a token contract.
// Block numbers inside log responses are hex encoded.
func (c *Client) TransferLogs(ctx context.Context, token string, fromBlock, toBlock uint64, page, offset int) ([]model.TransferEvent, error) {
	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	params.Set("address", token)
	params.Set("topic0", TransferTopic)
	params.Set("fromBlock", strconv.FormatUint(fromBlock, 10))
	params.Set("toBlock", strconv.FormatUint(toBlock, 10))
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(offset))

	var entries []logEntry
	if err := c.get(ctx, params, &entries); err != nil {
		return nil, err
	}

	events := make([]model.TransferEvent, 0, len(entries))
	for _, entry := range entries {
		event, err := parseTransferLog(entry)
		if err != nil {
			c.logger.Warn("skip malformed log", zap.String("tx", entry.TransactionHash), zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func parseTransferLog(entry logEntry) (model.TransferEvent, error) {
	if len(entry.Topics) < 3 {
		return model.TransferEvent{}, fmt.Errorf("transfer log needs 3 topics, got %d", len(entry.Topics))
	}

	blockNumber, err := parseHexUint(entry.BlockNumber)
	if err != nil {
		return model.TransferEvent{}, fmt.Errorf("block number: %w", err)
	}
	logIndex, err := parseHexUint(entry.LogIndex)
	if err != nil {
		return model.TransferEvent{}, fmt.Errorf("log index: %w", err)
	}
	value, err := parseHexBig(entry.Data)
	if err != nil {
		return model.TransferEvent{}, fmt.Errorf("value: %w", err)
	}

	return model.TransferEvent{
		TxHash:      entry.TransactionHash,
		BlockNumber: blockNumber,
		LogIndex:    logIndex,
		From:        topicAddress(entry.Topics[1]),
		To:          topicAddress(entry.Topics[2]),
		ValueRaw:    value,
	}, nil
}

func topicAddress(topic string) string {
	hash := common.HexToHash(topic)
	return strings.ToLower(common.BytesToAddress(hash[12:]).Hex())
}

func parseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func parseHexBig(value string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity: %s", value)
	}
	return parsed, nil
}

type accountTxRow struct {
	BlockNumber  string `json:"blockNumber"`
	TimeStamp    string `json:"timeStamp"`
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	ContractAddr string `json:"contractAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	TokenDecimal string `json:"tokenDecimal"`
	TokenName    string `json:"tokenName"`
	TokenID      string `json:"tokenID"`
	IsError      string `json:"isError"`
}

// AccountTxs fetches one page of a wallet's native transactions, ascending.
func (c *Client) AccountTxs(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error) {
	return c.accountPage(ctx, "txlist", model.TransferNative, wallet, startBlock, page, offset)
}

// AccountTokenTransfers fetches one page of a wallet's ERC-20 transfers.
func (c *Client) AccountTokenTransfers(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error) {
	return c.accountPage(ctx, "tokentx", model.TransferERC20, wallet, startBlock, page, offset)
}

// AccountNFTTransfers fetches one page of a wallet's ERC-721 transfers.
func (c *Client) AccountNFTTransfers(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error) {
	return c.accountPage(ctx, "tokennfttx", model.TransferNFT, wallet, startBlock, page, offset)
}

func (c *Client) accountPage(ctx context.Context, action string, kind model.TransferKind, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", wallet)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", "99999999")
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "asc")

	var rows []accountTxRow
	if err := c.get(ctx, params, &rows); err != nil {
		return nil, err
	}

	transfers := make([]model.AccountTransfer, 0, len(rows))
	for _, row := range rows {
		if kind == model.TransferNative && row.IsError == "1" {
			continue
		}
		transfer, err := parseAccountRow(row, kind)
		if err != nil {
			c.logger.Warn("skip malformed transfer", zap.String("tx", row.Hash), zap.Error(err))
			continue
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

func parseAccountRow(row accountTxRow, kind model.TransferKind) (model.AccountTransfer, error) {
	blockNumber, err := strconv.ParseUint(row.BlockNumber, 10, 64)
	if err != nil {
		return model.AccountTransfer{}, fmt.Errorf("block number: %w", err)
	}
	timestamp, err := strconv.ParseUint(row.TimeStamp, 10, 64)
	if err != nil {
		return model.AccountTransfer{}, fmt.Errorf("timestamp: %w", err)
	}

	value := big.NewInt(0)
	if kind != model.TransferNFT {
		value, err = model.ParseBigInt(row.Value)
		if err != nil {
			return model.AccountTransfer{}, fmt.Errorf("value: %w", err)
		}
	}

	var decimals uint8
	if row.TokenDecimal != "" {
		parsed, err := strconv.ParseUint(row.TokenDecimal, 10, 8)
		if err != nil {
			return model.AccountTransfer{}, fmt.Errorf("token decimals: %w", err)
		}
		decimals = uint8(parsed)
	}

	symbol := row.TokenSymbol
	if symbol == "" && kind == model.TransferNFT {
		symbol = row.TokenName
	}

	return model.AccountTransfer{
		Kind:            kind,
		TxHash:          row.Hash,
		BlockNumber:     blockNumber,
		Timestamp:       timestamp,
		From:            strings.ToLower(row.From),
		To:              strings.ToLower(row.To),
		ValueRaw:        value,
		ContractAddress: strings.ToLower(row.ContractAddr),
		TokenSymbol:     symbol,
		TokenDecimals:   decimals,
		TokenID:         row.TokenID,
	}, nil
}

type contractCreationRow struct {
	ContractAddress string `json:"contractAddress"`
	ContractCreator string `json:"contractCreator"`
	TxHash          string `json:"txHash"`
	BlockNumber     string `json:"blockNumber"`
}

// ContractCreation returns the creation block of a contract, or ok=false when
// the explorer has no record.
func (c *Client) ContractCreation(ctx context.Context, contract string) (uint64, bool, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getcontractcreation")
	params.Set("contractaddresses", contract)

	var rows []contractCreationRow
	if err := c.get(ctx, params, &rows); err != nil {
		return 0, false, err
	}
	if len(rows) == 0 || rows[0].BlockNumber == "" {
		return 0, false, nil
	}
	blockNumber, err := strconv.ParseUint(rows[0].BlockNumber, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("creation block: %w", err)
	}
	return blockNumber, true, nil
}

// TokenSupply returns the reported total supply in raw units. A zero value
// means the explorer has no answer and the caller should fall back.
func (c *Client) TokenSupply(ctx context.Context, token string) (*big.Int, error) {
	params := url.Values{}
	params.Set("module", "stats")
	params.Set("action", "tokensupply")
	params.Set("contractaddress", token)

	var supply string
	if err := c.get(ctx, params, &supply); err != nil {
		return nil, err
	}
	return model.ParseBigInt(supply)
}

// BlockByTime returns the closest block before the given unix timestamp.
func (c *Client) BlockByTime(ctx context.Context, ts int64) (uint64, error) {
	params := url.Values{}
	params.Set("module", "block")
	params.Set("action", "getblocknobytime")
	params.Set("timestamp", strconv.FormatInt(ts, 10))
	params.Set("closest", "before")

	var blockStr string
	if err := c.get(ctx, params, &blockStr); err != nil {
		return 0, err
	}
	if blockStr == "" {
		return 0, fmt.Errorf("no block for timestamp %d", ts)
	}
	return strconv.ParseUint(blockStr, 10, 64)
}
