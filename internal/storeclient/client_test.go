package storeclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/reconcile"
	"github.com/noah-isme/backend-pos/internal/resilience"
	"github.com/noah-isme/backend-pos/internal/storeclient"
)

const tenantID = "0d8a3c0e-4a8f-4b7c-9a55-3f0d2c1b9e77"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeAPI serves one order through the per-call endpoints.
type fakeAPI struct {
	mu      sync.Mutex
	t       *testing.T
	order   reconcile.OrderHeader
	items   []reconcile.LineItem
	nextID  int64
	methods []string
}

func (f *fakeAPI) data(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "7" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"order not found"}}`))
			return
		}
		f.data(w, http.StatusOK, reconcile.OrderSnapshot{Order: f.order, Items: f.items})
	})
	mux.HandleFunc("GET /api/v1/orders/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		f.data(w, http.StatusOK, f.items)
	})
	mux.HandleFunc("POST /api/v1/orders/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items []reconcile.LineItem `json:"items"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		created := make([]reconcile.LineItem, 0, len(body.Items))
		for _, it := range body.Items {
			it.ID = f.nextID
			f.nextID++
			f.items = append(f.items, it)
			created = append(created, it)
		}
		f.data(w, http.StatusCreated, created)
	})
	mux.HandleFunc("PUT /api/v1/order-items/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		var patch reconcile.ItemPatch
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&patch))
		for i := range f.items {
			if f.items[i].ID == id {
				f.items[i].Discount, f.items[i].Tax, f.items[i].PriceBeforeTax = patch.Discount, patch.Tax, patch.PriceBeforeTax
				f.items[i].Total = patch.PriceBeforeTax.Add(patch.Tax)
				f.data(w, http.StatusOK, f.items[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("PUT /api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var header reconcile.OrderHeader
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&header))
		header.ID, header.OrderNumber = f.order.ID, f.order.OrderNumber
		f.order = header
		f.data(w, http.StatusOK, f.order)
	})
	mux.HandleFunc("DELETE /api/v1/order-items/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for i := range f.items {
			if f.items[i].ID == id {
				f.items = append(f.items[:i], f.items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/v1/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.data(w, http.StatusOK, reconcile.Product{ID: 20, Name: "Es Teh", Price: d("30000"), TaxRate: d("0")})
	})
	mux.HandleFunc("GET /api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		f.data(w, http.StatusOK, map[string]any{"storeName": "Warung", "priceIncludesTax": false})
	})
	mux.HandleFunc("POST /api/v1/purchase-order-items", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&raw))
		require.Equal(f.t, float64(3), raw["purchaseOrderId"])
		require.Equal(f.t, "1500", raw["unitPrice"])
		require.Equal(f.t, float64(2), raw["rowOrder"])
		f.data(w, http.StatusCreated, map[string]any{"id": 55, "productId": raw["productId"], "quantity": raw["quantity"], "unitPrice": raw["unitPrice"], "rowOrder": 2})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(f.t, tenantID, r.Header.Get("X-Tenant-ID"))
		f.mu.Lock()
		defer f.mu.Unlock()
		f.methods = append(f.methods, r.Method+" "+r.URL.Path)
		mux.ServeHTTP(w, r)
	})
}

func newAPI(t *testing.T) (*fakeAPI, *storeclient.Client) {
	t.Helper()
	api := &fakeAPI{
		t:      t,
		order:  reconcile.OrderHeader{ID: 7, OrderNumber: "ORD-000007", CustomerName: "Walk-in", Discount: d("0"), Subtotal: d("100000"), Tax: d("10000"), Total: d("110000")},
		nextID: 2,
		items: []reconcile.LineItem{{
			ID: 1, ProductID: 10, ProductName: "Nasi Goreng", Quantity: d("2"), UnitPrice: d("50000"), TaxRatePercent: d("10"),
			Discount: d("0"), PriceBeforeTax: d("100000"), Tax: d("10000"), Total: d("110000"),
		}},
	}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := storeclient.New(storeclient.Config{
		BaseURL:     srv.URL + "/api/v1/",
		TenantID:    tenantID,
		HTTPClient:  srv.Client(),
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		Breaker:     resilience.NewBreaker(100, 1, time.Second),
	})
	require.NoError(t, err)
	return api, client
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := storeclient.New(storeclient.Config{})
	require.Error(t, err)
}

func TestClientMapsErrorEnvelope(t *testing.T) {
	_, client := newAPI(t)
	_, err := client.GetOrder(context.Background(), 99)
	require.Error(t, err)

	var herr *storeclient.HTTPError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, http.StatusNotFound, herr.Status)
	require.Equal(t, "NOT_FOUND", herr.Code)
	require.Equal(t, "order not found", herr.Message)
	require.True(t, storeclient.IsNotFound(err))
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client, err := storeclient.New(storeclient.Config{BaseURL: srv.URL, MaxAttempts: 1})
	require.NoError(t, err)

	_, err = client.StoreSettings(context.Background())
	var nerr *storeclient.NetworkError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, "/settings", nerr.Path)
}

func TestClientDrivesStepwiseSession(t *testing.T) {
	api, client := newAPI(t)
	session, err := reconcile.NewOrderSession(7, reconcile.SessionConfig{
		Orders:   client,
		Catalog:  client,
		Settings: client,
		Logger:   zerolog.Nop(),
		Stepwise: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, session.BeginEdit(ctx))
	_, err = session.AddProduct(ctx, 20, d("1"))
	require.NoError(t, err)
	require.NoError(t, session.SetDiscount(d("10000")))
	require.NoError(t, session.Save(ctx))

	require.Equal(t, []string{
		"GET /api/v1/settings",
		"GET /api/v1/orders/7",
		"GET /api/v1/orders/7/items",
		"GET /api/v1/products/20",
		"POST /api/v1/orders/7/items",
		"PUT /api/v1/order-items/1",
		"PUT /api/v1/orders/7",
	}, api.methods)
	require.Len(t, api.items, 2)
	require.True(t, d("129231").Equal(api.order.Total))
	require.True(t, d("7692").Equal(api.items[0].Discount))
	require.True(t, d("2308").Equal(api.items[1].Discount))
	require.Equal(t, "ORD-000007", api.order.OrderNumber)
}

func TestClientDeletesAndCreatesPurchaseItems(t *testing.T) {
	api, client := newAPI(t)
	item, err := client.CreatePurchaseItem(context.Background(), 3, reconcile.LineItem{ProductID: 10, Quantity: d("4"), UnitPrice: d("1500"), RowOrder: 2})
	require.NoError(t, err)
	require.Equal(t, int64(55), item.ID)
	require.Equal(t, 2, item.RowOrder)

	require.NoError(t, client.DeleteOrderItem(context.Background(), 1))
	require.Empty(t, api.items)
	require.Error(t, client.DeleteOrderItem(context.Background(), 1))
}
