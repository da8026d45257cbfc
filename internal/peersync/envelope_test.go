package peersync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/testutil"
)

func sampleOrder(id string, updated time.Time) model.Order {
	o := model.Order{
		ID:         id,
		CustomerID: "c1",
		Status:     model.StatusPending,
		Items: []model.OrderItem{{
			ID: id + "-1", MenuItemID: "soup",
			MenuItem: model.MenuItem{ID: "soup", Name: "Soup", Price: decimal.NewFromInt(120)},
			Quantity: 2,
		}},
		CreatedAt: updated,
		UpdatedAt: updated,
		CanCancel: true,
	}
	o.Recalculate()
	return o
}

func TestEncodeOrders_Shape(t *testing.T) {
	at := testutil.Epoch
	data, err := EncodeOrders(nil, map[string]time.Time{"gone": at}, at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"_timestamp":1768478400000,"_removed":{"gone":1768478400000}}`, string(data))
}

func TestDecodeOrders_Envelope(t *testing.T) {
	at := testutil.Epoch
	o := sampleOrder("o-1", at)
	data, err := EncodeOrders([]model.Order{o}, map[string]time.Time{"o-9": at}, at)
	require.NoError(t, err)

	p, err := DecodeOrders(data)
	require.NoError(t, err)
	assert.False(t, p.Legacy)
	assert.True(t, at.Equal(p.Timestamp))
	require.Len(t, p.Orders, 1)
	assert.Equal(t, "o-1", p.Orders[0].ID)
	assert.True(t, o.UpdatedAt.Equal(p.Orders[0].UpdatedAt))
	assert.True(t, decimal.NewFromInt(240).Equal(p.Orders[0].TotalAmount))
	assert.Contains(t, p.Tombstones, "o-9")
}

func TestDecodeOrders_Legacy(t *testing.T) {
	raw := []byte(` [{"id":"o-1","customerId":"c1","status":"confirmed","items":[],"totalAmount":0,
		"createdAt":"2026-01-15T12:00:00Z","updatedAt":"2026-01-15T12:00:05Z","canCancel":false}]`)

	p, err := DecodeOrders(raw)
	require.NoError(t, err)
	assert.True(t, p.Legacy)
	assert.True(t, p.Timestamp.IsZero())
	require.Len(t, p.Orders, 1)
	assert.Equal(t, model.StatusConfirmed, p.Orders[0].Status)
}

func TestDecodeOrders_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not json"},
		{"truncated", `{"data":[`},
		{"object without timestamp", `{"data":[]}`},
		{"bad orders", `{"data":{"id":1},"_timestamp":1}`},
		{"bad legacy", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOrders([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %T", err)
			assert.Contains(t, err.Error(), "STORAGE_PARSE_ERROR")
		})
	}
}

func TestDecodeOrders_NullData(t *testing.T) {
	p, err := DecodeOrders([]byte(`{"data":null,"_timestamp":5}`))
	require.NoError(t, err)
	assert.Empty(t, p.Orders)
}

func TestDecodeRecord(t *testing.T) {
	at := testutil.Epoch
	c := model.Customer{ID: "c1", Name: "Alice", TableNumber: 3}

	data, err := EncodeRecord(c, at)
	require.NoError(t, err)
	got, stamp, err := DecodeRecord[model.Customer]("currentCustomer", data)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, at.Equal(stamp))

	got, stamp, err = DecodeRecord[model.Customer]("currentCustomer", []byte(`{"id":"c2","name":"Bob","tableNumber":7}`))
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ID)
	assert.True(t, stamp.IsZero(), "legacy values carry no timestamp")

	list, _, err := DecodeRecord[[]model.Customer]("customers", []byte(`[{"id":"c1"},{"id":"c2"}]`))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, _, err = DecodeRecord[model.Customer]("currentCustomer", []byte(`{"id":`))
	assert.True(t, IsParseError(err))
}
