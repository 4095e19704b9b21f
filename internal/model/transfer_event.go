package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// TransferEvent is one normalized ERC-20 Transfer log.
type TransferEvent struct {
	TxHash        string
	BlockNumber   uint64
	LogIndex      uint64
	From          string
	To            string
	ValueRaw      *big.Int
	TokenDecimals uint8
}

type transferEventJSON struct {
	TxHash        string `json:"tx_hash"`
	BlockNumber   uint64 `json:"block_number"`
	LogIndex      uint64 `json:"log_index"`
	From          string `json:"from"`
	To            string `json:"to"`
	ValueRaw      string `json:"value_raw"`
	TokenDecimals uint8  `json:"token_decimals"`
}

// MarshalJSON encodes the raw amount as a decimal string to avoid
// precision loss in consumers.
func (e TransferEvent) MarshalJSON() ([]byte, error) {
	value := "0"
	if e.ValueRaw != nil {
		value = e.ValueRaw.String()
	}
	return json.Marshal(transferEventJSON{
		TxHash:        e.TxHash,
		BlockNumber:   e.BlockNumber,
		LogIndex:      e.LogIndex,
		From:          e.From,
		To:            e.To,
		ValueRaw:      value,
		TokenDecimals: e.TokenDecimals,
	})
}

// UnmarshalJSON decodes a TransferEvent from JSON.
func (e *TransferEvent) UnmarshalJSON(data []byte) error {
	var raw transferEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := ParseBigInt(raw.ValueRaw)
	if err != nil {
		return fmt.Errorf("value_raw: %w", err)
	}
	*e = TransferEvent{
		TxHash:        raw.TxHash,
		BlockNumber:   raw.BlockNumber,
		LogIndex:      raw.LogIndex,
		From:          raw.From,
		To:            raw.To,
		ValueRaw:      value,
		TokenDecimals: raw.TokenDecimals,
	}
	return nil
}

// ParseBigInt parses a decimal string into a big.Int. Empty input means zero.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
