package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/store"
)

type cliRun struct {
	out    string
	errOut string
	err    error
}

func execute(t *testing.T, args ...string) cliRun {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliRun{out: out.String(), errOut: errOut.String(), err: err}
}

type outcomeResponse struct {
	Status string       `json:"status"`
	Data   orderOutcome `json:"data"`
	Error  *CLIError    `json:"error"`
}

func decodeOutcome(t *testing.T, r cliRun) outcomeResponse {
	t.Helper()
	var resp outcomeResponse
	require.NoError(t, json.Unmarshal([]byte(r.out), &resp), r.out)
	return resp
}

// peerArgs returns the global flags of one local-only peer.
func peerArgs(db string, args ...string) []string {
	return append([]string{"--format", "json", "--db", db}, args...)
}

func placeBurgers(t *testing.T, db string, extra ...string) model.Order {
	t.Helper()
	args := peerArgs(db, "place", "--customer", "c-42", "--name", "Alice", "--table", "4",
		"--line", "burger,Burger,8.50,2", "--line", "fries,Fries,3.00,1")
	args = append(extra, args...)
	r := execute(t, args...)
	require.NoError(t, r.err, r.errOut)
	resp := decodeOutcome(t, r)
	require.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data.Order)
	return *resp.Data.Order
}

func TestPlace_CreatesPendingOrder(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)

	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, "Alice", o.CustomerName)
	assert.Equal(t, 4, o.TableNumber)
	assert.True(t, o.CanCancel)
	require.Len(t, o.Items, 2)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("20.00")), o.TotalAmount.String())
}

func TestPlace_InvalidLine(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	tests := []struct {
		name string
		line string
	}{
		{"too_few_fields", "burger,Burger,8.50"},
		{"bad_price", "burger,Burger,cheap,1"},
		{"negative_price", "burger,Burger,-1,1"},
		{"bad_quantity", "burger,Burger,8.50,two"},
		{"empty_id", ",Burger,8.50,1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := execute(t, peerArgs(db, "place", "--customer", "c-1", "--line", tt.line)...)
			require.Error(t, r.err)
			assert.Equal(t, ExitCommandError, GetExitCode(r.err))
			assert.Contains(t, r.err.Error(), "invalid --line")
		})
	}
}

func TestPlace_ZeroQuantityRejected(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	r := execute(t, peerArgs(db, "place", "--customer", "c-1", "--line", "burger,Burger,8.50,0")...)
	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	resp := decodeOutcome(t, r)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_STATE", resp.Error.Code)
}

func TestAdvance_FullLifecyclePrintsReceipt(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)

	steps := []struct {
		status string
		role   string
	}{
		{"confirmed", "waiter"},
		{"preparing", "chef"},
		{"ready", "chef"},
		{"served", "waiter"},
	}
	var served cliRun
	for _, s := range steps {
		r := execute(t, peerArgs(db, "advance", o.ID, s.status, "--role", s.role)...)
		require.NoError(t, r.err, "%s by %s: %s", s.status, s.role, r.out)
		resp := decodeOutcome(t, r)
		require.NotNil(t, resp.Data.Order)
		assert.Equal(t, model.Status(s.status), resp.Data.Order.Status)
		assert.True(t, resp.Data.LocalOnly)
		served = r
	}

	assert.Contains(t, served.errOut, "--- receipt "+o.ID+" ---")
	assert.Contains(t, served.errOut, "Alice, table 4")

	r := execute(t, peerArgs(db, "advance", o.ID, "completed", "--role", "customer", "--customer", "c-42")...)
	require.NoError(t, r.err, r.out)
	assert.Equal(t, model.StatusCompleted, decodeOutcome(t, r).Data.Order.Status)
}

func TestAdvance_RoleMayNotTakeStep(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)

	r := execute(t, peerArgs(db, "advance", o.ID, "confirmed", "--role", "chef")...)
	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	resp := decodeOutcome(t, r)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_TRANSITION", resp.Error.Code)
}

func TestAdvance_BadArguments(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")

	r := execute(t, peerArgs(db, "advance", "o-1", "eaten", "--role", "admin")...)
	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))

	r = execute(t, peerArgs(db, "advance", "o-1", "confirmed", "--role", "janitor")...)
	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))

	r = execute(t, peerArgs(db, "advance", "o-1", "completed", "--role", "customer")...)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "--customer is required")

	r = execute(t, peerArgs(db, "advance", "o-1", "confirmed")...)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), `required flag(s) "role" not set`)
}

func TestAdvance_UnknownOrder(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	r := execute(t, peerArgs(db, "advance", "missing", "confirmed", "--role", "waiter")...)
	require.Error(t, r.err)
	resp := decodeOutcome(t, r)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestCancel_RemovesOrder(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)

	r := execute(t, peerArgs(db, "cancel", o.ID, "--role", "customer", "--customer", "c-42")...)
	require.NoError(t, r.err, r.out)
	resp := decodeOutcome(t, r)
	assert.Nil(t, resp.Data.Order)
	assert.Equal(t, "cancel", resp.Data.Action)

	r = execute(t, "--db", db, "list")
	require.NoError(t, r.err)
	assert.Equal(t, "No orders.\n", r.out)
}

func TestCancel_OtherCustomerForbidden(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)

	r := execute(t, peerArgs(db, "cancel", o.ID, "--role", "customer", "--customer", "c-99")...)
	require.Error(t, r.err)
	resp := decodeOutcome(t, r)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestItem_WaiterDecrements(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)
	burger := o.Items[0]
	require.Equal(t, "burger", burger.MenuItemID)

	r := execute(t, peerArgs(db, "item", o.ID, burger.ID, "decrement", "--role", "waiter")...)
	require.NoError(t, r.err, r.out)
	updated := decodeOutcome(t, r).Data.Order
	require.NotNil(t, updated)
	assert.Equal(t, 1, updated.Items[0].Quantity)
	assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("11.50")), updated.TotalAmount.String())

	r = execute(t, peerArgs(db, "item", o.ID, burger.ID, "remove", "--role", "chef")...)
	require.Error(t, r.err)
	assert.Equal(t, "FORBIDDEN", decodeOutcome(t, r).Error.Code)

	r = execute(t, peerArgs(db, "item", o.ID, burger.ID, "double", "--role", "waiter")...)
	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))
}

func TestList_RoleAndStatusFilters(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	first := placeBurgers(t, db)
	placeBurgers(t, db)

	r := execute(t, peerArgs(db, "advance", first.ID, "confirmed", "--role", "waiter")...)
	require.NoError(t, r.err, r.out)

	listIDs := func(args ...string) []string {
		t.Helper()
		r := execute(t, peerArgs(db, append([]string{"list"}, args...)...)...)
		require.NoError(t, r.err, r.out)
		var resp struct {
			Status string        `json:"status"`
			Data   []model.Order `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.out), &resp))
		ids := make([]string, 0, len(resp.Data))
		for _, o := range resp.Data {
			ids = append(ids, o.ID)
		}
		return ids
	}

	assert.Len(t, listIDs(), 2)
	assert.Equal(t, []string{first.ID}, listIDs("--role", "chef"))
	assert.Len(t, listIDs("--status", "pending"), 1)
	assert.Len(t, listIDs("--status", "pending", "--status", "confirmed"), 2)
	assert.Len(t, listIDs("--role", "customer", "--customer", "c-42"), 2)
	assert.Empty(t, listIDs("--role", "customer", "--customer", "c-7"))
	assert.Len(t, listIDs("--search", "ALICE"), 2)

	r = execute(t, peerArgs(db, "list", "--status", "eaten")...)
	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))
}

func TestList_TextBoard(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	o := placeBurgers(t, db)

	r := execute(t, "--db", db, "list")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "ID")
	assert.Contains(t, r.out, o.ID)
	assert.Contains(t, r.out, "20.00")
	assert.Contains(t, r.out, "1 order(s), total 20.00")
}

func TestRecover_ReportsLoadedOrders(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")
	placeBurgers(t, db)
	placeBurgers(t, db)

	r := execute(t, "--db", db, "recover")
	require.NoError(t, r.err)
	assert.Equal(t, "Recovered 2 order(s); 2 order(s) known\n", r.out)
}

func TestOneShotCommands_LeaveOverdueWorkAlone(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "orders.db")
	placed := placeBurgers(t, db)

	// Seeded as new rows: the store never replaces a row with an older one.
	st, err := store.Open(db)
	require.NoError(t, err)
	hourAgo := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	served, pending := placed.Clone(), placed.Clone()
	served.ID, pending.ID = "seed-served", "seed-pending"
	served.Status = model.StatusServed
	served.CanCancel = false
	served.CreatedAt, served.UpdatedAt = hourAgo, hourAgo
	pending.CreatedAt, pending.UpdatedAt = hourAgo, hourAgo
	require.NoError(t, st.SetOrder(ctx, served))
	require.NoError(t, st.SetOrder(ctx, pending))
	require.NoError(t, st.Close())

	for i := 0; i < 3; i++ {
		r := execute(t, peerArgs(db, "list")...)
		require.NoError(t, r.err, r.errOut)
		assert.NotContains(t, r.errOut, "receipt")
	}

	st, err = store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	got, err := st.GetOrder(ctx, served.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusServed, got.Status)
	got, err = st.GetOrder(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, got.CanCancel)
}

func TestRedisPeers_ShareOrders(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	front := filepath.Join(dir, "front.db")
	kitchen := filepath.Join(dir, "kitchen.db")

	o := placeBurgers(t, front, "--redis", mr.Addr(), "--peer", "front")

	r := execute(t, "--format", "json", "--db", kitchen, "--redis", mr.Addr(), "--peer", "kitchen",
		"advance", o.ID, "confirmed", "--role", "waiter")
	require.NoError(t, r.err, r.out+r.errOut)
	resp := decodeOutcome(t, r)
	assert.False(t, resp.Data.LocalOnly)
	require.NotNil(t, resp.Data.Order)
	assert.Equal(t, model.StatusConfirmed, resp.Data.Order.Status)

	// The front peer's own database still says pending; the shared list wins.
	r = execute(t, "--format", "json", "--db", front, "--redis", mr.Addr(), "--peer", "front",
		"list", "--role", "chef")
	require.NoError(t, r.err)
	var board struct {
		Data []model.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.out), &board))
	require.Len(t, board.Data, 1)
	assert.Equal(t, model.StatusConfirmed, board.Data[0].Status)
}

func TestRedisUnavailable_FallsBackToLocalOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	db := filepath.Join(t.TempDir(), "orders.db")
	r := execute(t, "--format", "json", "--db", db, "--redis", addr,
		"place", "--customer", "c-1", "--line", "tea,Tea,2.00,1")
	require.NoError(t, r.err, r.errOut)
	assert.True(t, decodeOutcome(t, r).Data.LocalOnly)
	assert.Contains(t, r.errOut, "shared store unavailable")
}
