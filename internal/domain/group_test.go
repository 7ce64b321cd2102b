package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupsRoleOf(t *testing.T) {
	g := NewGroups()
	g.Merchant = append(g.Merchant, MerchantGroup{ID: 1, Title: "Shop"})
	g.Trader = append(g.Trader, TraderGroup{ID: 2, Title: "Acme | Trader"})

	role, ok := g.RoleOf(1)
	assert.True(t, ok)
	assert.Equal(t, RoleMerchant, role)

	role, ok = g.RoleOf(2)
	assert.True(t, ok)
	assert.Equal(t, RoleTrader, role)

	_, ok = g.RoleOf(3)
	assert.False(t, ok)
}

func TestGroupsCloneIsDeep(t *testing.T) {
	g := NewGroups()
	g.Trader = append(g.Trader, TraderGroup{ID: 2, Title: "Acme"})
	g.TraderAccounts[AccountKey(2)] = "alice"

	c := g.Clone()
	c.Trader[0].Title = "Changed"
	c.TraderAccounts[AccountKey(2)] = "bob"

	assert.Equal(t, "Acme", g.Trader[0].Title)
	assert.Equal(t, "alice", g.TraderUsername(2))
}

func TestGroupsDocumentShape(t *testing.T) {
	var g Groups
	require.NoError(t, json.Unmarshal([]byte(`{"merchant":[{"id":-10,"title":"Shop","appeal_id_start_pos":5,"appeal_id_length":36}]}`), &g))
	g.Normalize()

	m, ok := g.FindMerchant(-10)
	require.True(t, ok)
	assert.True(t, m.HasAppealIDRule())
	assert.NotNil(t, g.Trader)
	assert.NotNil(t, g.TraderAccounts)
	assert.Equal(t, "-10", AccountKey(-10))
}
