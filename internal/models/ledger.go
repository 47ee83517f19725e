/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is a closed enumeration. Add new variants, never repurpose existing ones.
type EntryType string

const (
	EntryTypeDeposit       EntryType = "deposit"
	EntryTypeWithdraw      EntryType = "withdraw"
	EntryTypeYieldHarvest  EntryType = "yield_harvest"
	EntryTypeReferralBonus EntryType = "referral_bonus"
)

// Valid reports whether t is a known entry type
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypeWithdraw, EntryTypeYieldHarvest, EntryTypeReferralBonus:
		return true
	}
	return false
}

// CarriesBalanceEffect reports whether confirming an entry of this type must be
// paired with a balance mutation.
func (t EntryType) CarriesBalanceEffect() bool {
	switch t {
	case EntryTypeDeposit, EntryTypeWithdraw, EntryTypeYieldHarvest, EntryTypeReferralBonus:
		return true
	}
	return false
}

// Sign is the direction in which a confirmed entry of this type moves total_balance.
func (t EntryType) Sign() int {
	switch t {
	case EntryTypeDeposit, EntryTypeYieldHarvest, EntryTypeReferralBonus:
		return 1
	case EntryTypeWithdraw:
		return -1
	}
	return 0
}

// EntryStatus is the lifecycle state of a ledger entry
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusConfirmed EntryStatus = "confirmed"
	EntryStatusFailed    EntryStatus = "failed"
	EntryStatusCancelled EntryStatus = "cancelled"
)

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusPending, EntryStatusConfirmed, EntryStatusFailed, EntryStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed out of s
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusConfirmed || s == EntryStatusFailed || s == EntryStatusCancelled
}

// BalanceDelta is the closed set of adjustments a mutation may apply to a balance row.
// A zero Total is derived from Available+Locked.
type BalanceDelta struct {
	Total       decimal.Decimal
	Available   decimal.Decimal
	Locked      decimal.Decimal
	Shares      decimal.Decimal
	SharePrice  *decimal.Decimal // replaces the stored price when set
	YieldEarned decimal.Decimal
}

// TotalDelta returns the adjustment applied to total_balance
func (d BalanceDelta) TotalDelta() decimal.Decimal {
	if !d.Total.IsZero() {
		return d.Total
	}
	return d.Available.Add(d.Locked)
}

// IsZero reports whether the delta leaves every field untouched
func (d BalanceDelta) IsZero() bool {
	return d.Total.IsZero() && d.Available.IsZero() && d.Locked.IsZero() &&
		d.Shares.IsZero() && d.SharePrice == nil && d.YieldEarned.IsZero()
}

// EntryDraft describes a ledger entry to insert
type EntryDraft struct {
	Type              EntryType
	Amount            decimal.Decimal
	Shares            decimal.Decimal
	ExternalReference string
	Metadata          map[string]string
	Effect            EffectFields
}

// EntryRef names the entry a mutation records: a new draft or the ID of a pending entry.
type EntryRef struct {
	Draft   *EntryDraft
	EntryId string
	// Effect is recorded on an existing entry when it is confirmed
	Effect EffectFields
}

func NewEntry(draft EntryDraft) EntryRef {
	return EntryRef{Draft: &draft}
}

func ExistingEntry(entryId string) EntryRef {
	return EntryRef{EntryId: entryId}
}

func (r EntryRef) WithEffect(effect EffectFields) EntryRef {
	r.Effect = effect
	return r
}

// EffectFields are the attributes recorded alongside a state transition
type EffectFields struct {
	ExternalReference string
	BlockHeight       *int64
	GasUsed           *int64
	GasFee            *decimal.Decimal
	ErrorMessage      string
	Metadata          map[string]string
}

// EntryFilter selects and paginates ledger entries for a user
type EntryFilter struct {
	Types    []EntryType
	Statuses []EntryStatus
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// EntryTotals holds the sum of confirmed entry amounts per type
type EntryTotals map[EntryType]decimal.Decimal

// Net is the signed effect of the totals on total_balance
func (t EntryTotals) Net() decimal.Decimal {
	net := decimal.Zero
	for typ, amount := range t {
		net = net.Add(amount.Mul(decimal.NewFromInt(int64(typ.Sign()))))
	}
	return net
}
