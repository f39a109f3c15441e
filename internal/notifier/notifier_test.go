package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func captureWebhook(t *testing.T) (*httptest.Server, *[]byte) {
	t.Helper()
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &body
}

func TestSendApprovalRequestPostsAdaptiveCard(t *testing.T) {
	server, body := captureWebhook(t)
	n := New(server.URL, "http://localhost:8080/", zap.NewNop())

	invoice := model.InvoiceData{
		InvoiceNumber: "INV-42",
		InvoiceDate:   "2025-01-15",
		TotalPrice:    "1250.00",
		Items:         []model.InvoiceItem{{Name: "Flight", Price: "1250.00"}},
	}
	evaluation := model.Evaluation{
		Decision: model.StatusPending,
		Reasons:  []string{"Criteria not fully met"},
		Category: "Travel",
	}

	n.SendApprovalRequest(invoice, evaluation, "invoice_Travel.pdf")

	require.NotEmpty(t, *body)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(*body, &payload))

	assert.Equal(t, "message", payload["type"])
	assert.NotEmpty(t, payload["correlationId"])

	text := string(*body)
	assert.Contains(t, text, "Invoice Approval Required")
	assert.Contains(t, text, "INV-42")
	assert.Contains(t, text, "1250.00")
	assert.Contains(t, text, "Criteria not fully met")
	// Action links go through the API base, trailing slash normalized away.
	assert.Contains(t, text, "http://localhost:8080/api/invoice/approve/invoice_Travel.pdf")
	assert.Contains(t, text, "http://localhost:8080/api/invoice/reject/invoice_Travel.pdf")
}

func TestSendApprovalResultTitleReflectsDecision(t *testing.T) {
	server, body := captureWebhook(t)
	n := New(server.URL, "http://localhost:8080", zap.NewNop())

	n.SendApprovalResult("invoice_Travel.pdf", true, "INV-42")
	assert.Contains(t, string(*body), "Invoice Approved")

	n.SendApprovalResult("invoice_Travel.pdf", false, "INV-42")
	assert.Contains(t, string(*body), "Invoice Rejected")
}

func TestEmptyWebhookURLIsNoOp(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	n := New("", server.URL, zap.NewNop())
	n.SendApprovalRequest(model.InvoiceData{}, model.Evaluation{}, "f.pdf")
	n.SendApprovalResult("f.pdf", true, "INV-1")

	assert.False(t, called)
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad card", http.StatusBadRequest)
	}))
	defer server.Close()

	n := New(server.URL, "http://localhost:8080", zap.NewNop())

	// Must not panic or surface an error.
	n.SendApprovalResult("f.pdf", false, "INV-1")
}
