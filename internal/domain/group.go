package domain

import "strconv"

type GroupRole string

const (
	RoleMerchant GroupRole = "merchant"
	RoleTrader   GroupRole = "trader"
)

// MerchantGroup is a chat that submits appeals. AppealIDStartPos/AppealIDLength
// hold the learned fixed-offset extraction rule; a zero length means unset.
type MerchantGroup struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	AppealIDStartPos int    `json:"appeal_id_start_pos"`
	AppealIDLength   int    `json:"appeal_id_length"`
}

func (g MerchantGroup) HasAppealIDRule() bool {
	return g.AppealIDLength > 0 && g.AppealIDStartPos >= 0
}

// TraderGroup is a chat that receives forwarded appeals and answers them.
type TraderGroup struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Groups is the persisted registry document.
type Groups struct {
	Merchant       []MerchantGroup   `json:"merchant"`
	Trader         []TraderGroup     `json:"trader"`
	TraderAccounts map[string]string `json:"trader_accounts"`
}

func NewGroups() *Groups {
	return &Groups{
		Merchant:       []MerchantGroup{},
		Trader:         []TraderGroup{},
		TraderAccounts: map[string]string{},
	}
}

// Normalize replaces nil collections left by partial documents.
func (g *Groups) Normalize() {
	if g.Merchant == nil {
		g.Merchant = []MerchantGroup{}
	}
	if g.Trader == nil {
		g.Trader = []TraderGroup{}
	}
	if g.TraderAccounts == nil {
		g.TraderAccounts = map[string]string{}
	}
}

func (g *Groups) Clone() *Groups {
	c := &Groups{
		Merchant:       make([]MerchantGroup, len(g.Merchant)),
		Trader:         make([]TraderGroup, len(g.Trader)),
		TraderAccounts: make(map[string]string, len(g.TraderAccounts)),
	}
	copy(c.Merchant, g.Merchant)
	copy(c.Trader, g.Trader)
	for k, v := range g.TraderAccounts {
		c.TraderAccounts[k] = v
	}
	return c
}

// RoleOf reports which set, if any, holds chatID.
func (g *Groups) RoleOf(chatID int64) (GroupRole, bool) {
	if g.MerchantIndex(chatID) >= 0 {
		return RoleMerchant, true
	}
	if g.TraderIndex(chatID) >= 0 {
		return RoleTrader, true
	}
	return "", false
}

func (g *Groups) FindMerchant(chatID int64) (MerchantGroup, bool) {
	if i := g.MerchantIndex(chatID); i >= 0 {
		return g.Merchant[i], true
	}
	return MerchantGroup{}, false
}

func (g *Groups) TraderUsername(chatID int64) string {
	return g.TraderAccounts[AccountKey(chatID)]
}

// MerchantIndex returns the position of chatID in the merchant list or -1.
func (g *Groups) MerchantIndex(chatID int64) int {
	for i, m := range g.Merchant {
		if m.ID == chatID {
			return i
		}
	}
	return -1
}

// TraderIndex returns the position of chatID in the trader list or -1.
func (g *Groups) TraderIndex(chatID int64) int {
	for i, t := range g.Trader {
		if t.ID == chatID {
			return i
		}
	}
	return -1
}

// AccountKey is the trader_accounts map key for a chat.
func AccountKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
