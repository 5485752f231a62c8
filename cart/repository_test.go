package cart_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofalre.io/marketplace/cart"
	"gofalre.io/marketplace/driver"
	"gofalre.io/marketplace/models"
)

func TestEncodeSnapshot(t *testing.T) {
	data, err := cart.EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	price, err := models.ParsePrice("59.90")
	require.NoError(t, err)

	data, err = cart.EncodeSnapshot([]models.Product{
		{ID: "1", Title: "Camiseta", ImageURL: "c.png", Price: price, Quantity: 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","title":"Camiseta","image_url":"c.png","price":59.9,"quantity":2}]`, string(data))
}

func TestDecodeSnapshot(t *testing.T) {
	products, err := cart.DecodeSnapshot([]byte(`[
		{"id":"b","title":"B","image_url":"b.png","price":1.5,"quantity":1},
		{"id":"a","title":"A","image_url":"a.png","price":"20","quantity":4}
	]`))
	require.NoError(t, err)
	requireProducts(t, []models.Product{
		{ID: "b", Title: "B", ImageURL: "b.png", Price: models.NewPrice(1.5), Quantity: 1},
		{ID: "a", Title: "A", ImageURL: "a.png", Price: models.NewPrice(20), Quantity: 4},
	}, products)

	products, err = cart.DecodeSnapshot([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, products)

	for _, raw := range []string{
		``,
		`null garbage`,
		`[{"id":"a","price":"abc","quantity":1}]`,
		`[{"id":"a","price":1,"quantity":-1}]`,
	} {
		_, err := cart.DecodeSnapshot([]byte(raw))
		assert.ErrorIs(t, err, cart.ErrCorruptSnapshot, "input %q", raw)
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	kv := driver.NewMemoryStore()
	repo := cart.NewRepository(kv, nil)

	products, found, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, products)

	want := []models.Product{line(item("a", 3), 2), line(item("b", 4), 1)}
	require.NoError(t, repo.Save(ctx, want))

	products, found, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	requireProducts(t, want, products)

	raw, ok, err := kv.Get(ctx, "@GoMarketPlace:products")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"image_url"`)

	require.NoError(t, repo.Delete(ctx))
	_, found, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	seed(t, kv, `oops`)
	_, found, err = repo.Load(ctx)
	assert.True(t, found)
	assert.ErrorIs(t, err, cart.ErrCorruptSnapshot)
}
