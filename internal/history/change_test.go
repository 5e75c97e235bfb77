package history

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDescription(t *testing.T, c Change) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.Description()), &out))
	return out
}

func TestChange_Description(t *testing.T) {
	t.Run("quantity update", func(t *testing.T) {
		c := New("order-1", ActionUpdateQuantity)
		c.ProductName = "Pho bo"
		c.OldQuantity = 3
		c.NewQuantity = 1
		c.UnitPrice = decimal.NewFromInt(50000)

		got := decodeDescription(t, c)

		assert.Equal(t, "Pho bo", got["productName"])
		assert.EqualValues(t, 3, got["oldQuantity"])
		assert.EqualValues(t, 1, got["newQuantity"])
		assert.EqualValues(t, 50000, got["unitPrice"])
		assert.Equal(t, "Item quantity updated", got["note"])
		assert.NotContains(t, got, "oldDiscount")
	})

	t.Run("item discount update", func(t *testing.T) {
		c := New("order-1", ActionUpdateDiscount)
		c.ProductName = "Tra da"
		c.OldDiscount = decimal.NewFromInt(2000)
		c.NewDiscount = decimal.RequireFromString("1500.4")
		c.Quantity = 2
		c.UnitPrice = decimal.NewFromInt(10000)

		got := decodeDescription(t, c)

		assert.EqualValues(t, 2000, got["oldDiscount"])
		assert.EqualValues(t, 1500, got["newDiscount"], "amounts are whole currency units")
		assert.EqualValues(t, 2, got["quantity"])
		assert.NotContains(t, got, "oldQuantity")
	})

	t.Run("order discount update has no product", func(t *testing.T) {
		c := New("order-1", ActionUpdateOrderDiscount)
		c.OldDiscount = decimal.Zero
		c.NewDiscount = decimal.NewFromInt(30000)

		got := decodeDescription(t, c)

		assert.NotContains(t, got, "productName")
		assert.NotContains(t, got, "quantity")
		assert.EqualValues(t, 30000, got["newDiscount"])
	})

	t.Run("custom note wins", func(t *testing.T) {
		c := New("order-1", ActionRemoveItem)
		c.Note = "guest changed their mind"

		got := decodeDescription(t, c)

		assert.Equal(t, "guest changed their mind", got["note"])
	})
}

func TestNew(t *testing.T) {
	a := New("order-9", ActionAddItem)
	b := New("order-9", ActionAddItem)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "order-9", a.OrderID)
	assert.False(t, a.ChangedAt.IsZero())
}
