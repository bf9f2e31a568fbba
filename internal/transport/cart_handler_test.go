package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"minimarket/internal/middleware"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartOf(t *testing.T, w *httptest.ResponseRecorder) CartView {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view CartView
	decode(t, w, &view)
	return view
}

func TestCartHandler_AddWeightVariants(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple", WeightGrams: 500}, "")
	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple", WeightGrams: 500}, "")
	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple"}, "")
	view := cartOf(t, ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "bread"}, ""))

	require.Len(t, view.Items, 3)
	assert.Equal(t, "apple_500", view.Items[0].Key)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, int64(6000), view.Items[0].UnitPrice)
	assert.Equal(t, int64(12000), view.Items[0].LinePrice)
	assert.Equal(t, "apple", view.Items[1].Key)
	assert.Equal(t, int64(12000), view.Items[1].LinePrice)
	assert.Equal(t, "bread", view.Items[2].Key)

	assert.Equal(t, 4, view.TotalItems)
	assert.Equal(t, int64(12000+12000+5000), view.TotalPrice)
	assert.True(t, view.Loaded)
	assert.Empty(t, view.PersistError)
}

func TestCartHandler_AddRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		req  AddItemRequest
		code int
	}{
		{"unknown product", AddItemRequest{ProductID: "ghost"}, http.StatusNotFound},
		{"out of stock", AddItemRequest{ProductID: "milk"}, http.StatusConflict},
		{"weight on piece product", AddItemRequest{ProductID: "bread", WeightGrams: 300}, http.StatusBadRequest},
		{"weight not offered", AddItemRequest{ProductID: "apple", WeightGrams: 250}, http.StatusBadRequest},
		{"negative weight", AddItemRequest{ProductID: "apple", WeightGrams: -100}, http.StatusBadRequest},
		{"missing product", AddItemRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, "POST", "/api/cart/items", tt.req, "")
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	view := cartOf(t, ts.do(t, "GET", "/api/cart", nil, ""))
	assert.Empty(t, view.Items)
}

func TestCartHandler_UpdateRemoveClear(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple", WeightGrams: 300}, "")
	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "banana", WeightGrams: 1500}, "")
	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "bread"}, "")

	view := cartOf(t, ts.do(t, "PUT", "/api/cart/items", UpdateItemRequest{ProductID: "bread", Quantity: 7}, ""))
	assert.Equal(t, 9, view.TotalItems)

	// unknown line is a no-op
	view = cartOf(t, ts.do(t, "PUT", "/api/cart/items", UpdateItemRequest{ProductID: "apple", WeightGrams: 500, Quantity: 3}, ""))
	assert.Equal(t, 9, view.TotalItems)

	view = cartOf(t, ts.do(t, "PUT", "/api/cart/items", UpdateItemRequest{ProductID: "apple", WeightGrams: 300, Quantity: 0}, ""))
	require.Len(t, view.Items, 2)
	assert.Equal(t, "banana_1500", view.Items[0].Key)
	assert.Equal(t, int64(27000), view.Items[0].LinePrice)

	view = cartOf(t, ts.do(t, "DELETE", "/api/cart/items?product_id=banana&weight_grams=1500", nil, ""))
	require.Len(t, view.Items, 1)
	assert.Equal(t, "bread", view.Items[0].Key)

	w := ts.do(t, "DELETE", "/api/cart/items?product_id=bread&weight_grams=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, "DELETE", "/api/cart/items", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	view = cartOf(t, ts.do(t, "DELETE", "/api/cart", nil, ""))
	assert.Empty(t, view.Items)
	assert.Zero(t, view.TotalPrice)
}

func TestCartHandler_PersistsSnapshot(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple", WeightGrams: 700}, "")
	require.NoError(t, ts.carts.Flush(context.Background()))

	raw, err := ts.redis.Get("cart:" + testSession)
	require.NoError(t, err)
	assert.Contains(t, raw, `"apple"`)
	assert.Contains(t, raw, "700")
}

func TestCartHandler_SessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "bread"}, "")

	req := httptest.NewRequest("GET", "/api/cart", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	view := cartOf(t, w)
	assert.Empty(t, view.Items)

	issued := w.Header().Get(middleware.SessionHeader)
	_, err := uuid.Parse(issued)
	assert.NoError(t, err)
	assert.NotEqual(t, testSession, issued)
}

// Property: adding the same product n times yields one line of quantity n
func TestProperty_RepeatedAddsMergeIntoOneLine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("n adds give quantity n and n times the unit price", prop.ForAll(
		func(n int, weightIndex int) bool {
			ts := newTestServer(t)
			weight := []int{0, 100, 200, 300, 500, 700, 1000, 1500, 2000}[weightIndex]

			var view CartView
			for i := 0; i < n; i++ {
				w := ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "banana", WeightGrams: weight}, "")
				if w.Code != http.StatusOK {
					return false
				}
				decode(t, w, &view)
			}

			return len(view.Items) == 1 &&
				view.Items[0].Quantity == n &&
				view.TotalItems == n &&
				view.TotalPrice == view.Items[0].UnitPrice*int64(n)
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCartHandler_UnreadableCartRefusesChanges(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.redis.Set("cart:"+testSession, `[{"product":{"id":"bread","price":5000,"unit":"dona"},"quantity":3}]`))
	ts.redis.SetError("LOADING Redis is loading the dataset in memory")

	w := ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	view := cartOf(t, ts.do(t, "GET", "/api/cart", nil, ""))
	assert.False(t, view.Loaded)
	assert.Empty(t, view.Items)

	ts.redis.SetError("")

	view = cartOf(t, ts.do(t, "POST", "/api/cart/items", AddItemRequest{ProductID: "apple"}, ""))
	assert.True(t, view.Loaded)
	require.Len(t, view.Items, 2, "the saved cart is kept")
	assert.Equal(t, "bread", view.Items[0].Key)
	assert.Equal(t, 3, view.Items[0].Quantity)
}
