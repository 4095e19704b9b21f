// Package ledger replays ordered Transfer events into per-address balances.
package ledger

import (
	"math/big"
	"sort"

	"tokenscope/internal/model"
)

// Burn sentinels: mints come from and burns go to these addresses.
var sentinels = map[string]struct{}{
	"0x0000000000000000000000000000000000000000": {},
	"0x000000000000000000000000000000000000dead": {},
	"0xdead000000000000000042069420694206942069": {},
}

// IsSentinel reports whether the address is a burn/zero sentinel.
func IsSentinel(address string) bool {
	_, ok := sentinels[address]
	return ok
}

// Ledger maps address to raw token balance. Balances can go transiently
// negative during replay; Build prunes non-positive entries at the end.
type Ledger map[string]*big.Int

// Build replays events into a balance ledger and a burned-supply counter.
// Events are re-sorted by (blockNumber, logIndex) first, so the result is
// identical regardless of the order pages arrived in.
func Build(events []model.TransferEvent) (Ledger, *big.Int) {
	ordered := make([]model.TransferEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BlockNumber != ordered[j].BlockNumber {
			return ordered[i].BlockNumber < ordered[j].BlockNumber
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	balances := make(Ledger)
	burned := big.NewInt(0)

	for _, event := range ordered {
		if event.ValueRaw == nil || event.ValueRaw.Sign() == 0 {
			continue
		}
		if !IsSentinel(event.From) {
			sub(balances, event.From, event.ValueRaw)
		}
		if IsSentinel(event.To) {
			burned.Add(burned, event.ValueRaw)
		} else {
			add(balances, event.To, event.ValueRaw)
		}
	}

	for address, balance := range balances {
		if balance.Sign() <= 0 {
			delete(balances, address)
		}
	}

	return balances, burned
}

// Sum returns the total of all positive balances.
func (l Ledger) Sum() *big.Int {
	total := big.NewInt(0)
	for _, balance := range l {
		if balance.Sign() > 0 {
			total.Add(total, balance)
		}
	}
	return total
}

func add(balances Ledger, address string, value *big.Int) {
	balance, ok := balances[address]
	if !ok {
		balance = big.NewInt(0)
		balances[address] = balance
	}
	balance.Add(balance, value)
}

func sub(balances Ledger, address string, value *big.Int) {
	balance, ok := balances[address]
	if !ok {
		balance = big.NewInt(0)
		balances[address] = balance
	}
	balance.Sub(balance, value)
}
