package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, func(origin string) *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)

	return mr, func(origin string) *Redis {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		r := NewRedis(client, origin, WithNamespace("test"))
		t.Cleanup(func() { r.Close() })
		return r
	}
}

func TestRedis_Ping(t *testing.T) {
	_, peer := setupRedis(t)
	require.NoError(t, peer("a").Ping(context.Background()))
}

func TestRedis_GetMissing(t *testing.T) {
	_, peer := setupRedis(t)

	_, err := peer("a").Get(context.Background(), KeyOrders)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_SetAndGet(t *testing.T) {
	ctx := context.Background()
	mr, peer := setupRedis(t)
	a, b := peer("a"), peer("b")

	require.NoError(t, a.Set(ctx, KeyOrders, []byte(`{"data":[]}`)))

	got, err := b.Get(ctx, KeyOrders)
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, string(got))

	raw, err := mr.Get("test:orders")
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, raw)
}

func TestRedis_SubscribeSkipsOwnWrites(t *testing.T) {
	ctx := context.Background()
	_, peer := setupRedis(t)
	a, b := peer("a"), peer("b")

	got := make(chan Change, 4)
	unsubA, err := a.Subscribe(ctx, func(c Change) { got <- Change{Key: "a-saw-" + c.Key} })
	require.NoError(t, err)
	defer unsubA()
	unsubB, err := b.Subscribe(ctx, func(c Change) { got <- c })
	require.NoError(t, err)
	defer unsubB()

	require.NoError(t, a.Set(ctx, KeyOrders, []byte(`v1`)))

	select {
	case c := <-got:
		assert.Equal(t, Change{Key: KeyOrders, Value: []byte(`v1`), Origin: "a"}, c)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered to b")
	}

	select {
	case c := <-got:
		t.Fatalf("unexpected extra change: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	mr, peer := setupRedis(t)
	a, b := peer("a"), peer("b")

	got := make(chan Change, 4)
	unsub, err := b.Subscribe(ctx, func(c Change) { got <- c })
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, a.Set(ctx, KeyCart, []byte(`{}`)))
	require.NoError(t, a.Delete(ctx, KeyCart))

	var changes []Change
	for len(changes) < 2 {
		select {
		case c := <-got:
			changes = append(changes, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 changes, got %d", len(changes))
		}
	}
	assert.NotNil(t, changes[0].Value)
	assert.Nil(t, changes[1].Value)
	assert.False(t, mr.Exists("test:cart"))
}

func TestRedis_EmptyWriteIsNotADelete(t *testing.T) {
	ctx := context.Background()
	mr, peer := setupRedis(t)
	a, b := peer("a"), peer("b")

	got := make(chan Change, 4)
	unsub, err := b.Subscribe(ctx, func(c Change) { got <- c })
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, a.Set(ctx, KeyCart, []byte{}))
	require.NoError(t, a.Set(ctx, KeyCart, nil))

	for i := 0; i < 2; i++ {
		select {
		case c := <-got:
			assert.Equal(t, KeyCart, c.Key)
			require.NotNil(t, c.Value, "write %d delivered as a delete", i)
			assert.Empty(t, c.Value)
		case <-time.After(2 * time.Second):
			t.Fatalf("write %d not delivered", i)
		}
	}
	assert.True(t, mr.Exists("test:cart"))
}

func TestRedis_UnavailableServer(t *testing.T) {
	mr, peer := setupRedis(t)
	a := peer("a")
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := a.Set(ctx, KeyOrders, []byte(`x`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set failed")
}
