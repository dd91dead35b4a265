package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentLink(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/products":
			assert.Equal(t, "Sourdough for Beginners", r.PostForm.Get("name"))
			_, _ = w.Write([]byte(`{"id":"prod_1","object":"product"}`))
		case "/v1/prices":
			assert.Equal(t, "prod_1", r.PostForm.Get("product"))
			assert.Equal(t, "999", r.PostForm.Get("unit_amount"))
			assert.Equal(t, "usd", r.PostForm.Get("currency"))
			_, _ = w.Write([]byte(`{"id":"price_1","object":"price"}`))
		case "/v1/payment_links":
			assert.Equal(t, "price_1", r.PostForm.Get("line_items[0][price]"))
			assert.Equal(t, "1", r.PostForm.Get("line_items[0][quantity]"))
			_, _ = w.Write([]byte(`{"id":"plink_1","object":"payment_link","url":"https://buy.stripe.com/test_abc"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	c := New(Config{APIKey: "sk_test_123", BaseURL: srv.URL})
	url, err := c.CreatePaymentLink(context.Background(), "Sourdough for Beginners", 999)
	require.NoError(t, err)
	assert.Equal(t, "https://buy.stripe.com/test_abc", url)
	assert.Equal(t, []string{"/v1/products", "/v1/prices", "/v1/payment_links"}, paths)
}

func TestCreatePaymentLink_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{APIKey: "sk_test_123", BaseURL: srv.URL, Currency: "zzz"})
	_, err := c.CreatePaymentLink(context.Background(), "X", 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe create product")
}
