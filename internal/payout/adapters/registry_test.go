package adapters

import (
	"testing"

	"github.com/smallbiznis/incomeengine/internal/payout/adapters/cashapp"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters/paypal"
	"github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(paypal.New(paypal.Config{}, nil, nil), cashapp.New(""), nil)

	assert.Equal(t, []string{"paypal", "cashapp"}, r.Kinds())
	assert.True(t, r.ProviderExists(" CashApp "))

	p, err := r.Get("PAYPAL")
	require.NoError(t, err)
	assert.Equal(t, "paypal", p.Kind())

	_, err = r.Get("venmo")
	assert.ErrorIs(t, err, domain.ErrUnknownDestination)
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.False(t, r.ProviderExists("paypal"))
	_, err := r.Get("paypal")
	assert.ErrorIs(t, err, domain.ErrUnknownDestination)
}
