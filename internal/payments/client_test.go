package payments

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIntent(t *testing.T) {
	var gotAuth, gotContentType string
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")

		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Write([]byte(`{"id": "pi_abc", "client_secret": "pi_abc_secret_xyz", "status": "requires_payment_method"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClientWithBaseURL("sk_test_123", server.URL)
	intent, err := client.CreateIntent(500, "usd", map[string]string{"group_id": "42"})
	require.NoError(t, err)

	assert.Equal(t, "pi_abc", intent.ID)
	assert.Equal(t, "pi_abc_secret_xyz", intent.ClientSecret)
	assert.Equal(t, "requires_payment_method", intent.Status)

	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "500", gotForm["amount"])
	assert.Equal(t, "usd", gotForm["currency"])
	assert.Equal(t, "42", gotForm["metadata[group_id]"])
}

func TestCreateIntentProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error": {"message": "Your card was declined."}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClientWithBaseURL("sk_test_123", server.URL)
	_, err := client.CreateIntent(500, "usd", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestCreateIntentUnreachableProvider(t *testing.T) {
	client := NewClientWithBaseURL("sk_test_123", "http://127.0.0.1:1")
	_, err := client.CreateIntent(500, "usd", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
