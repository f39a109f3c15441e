package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier posts approval cards to a chat webhook. Every send is
// fire-and-forget: failures are logged and swallowed so a broken webhook can
// never abort the request lifecycle. An empty webhook URL disables sending.
type Notifier struct {
	webhookURL string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func New(webhookURL, baseURL string, log *zap.Logger) *Notifier {
	return &Notifier{
		webhookURL: strings.TrimSpace(webhookURL),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// SendApprovalRequest posts an actionable card for a request held Pending.
func (n *Notifier) SendApprovalRequest(invoice model.InvoiceData, evaluation model.Evaluation, filename string) {
	if n.webhookURL == "" {
		return
	}

	facts := []map[string]string{
		{"title": "Invoice Number", "value": invoice.InvoiceNumber},
		{"title": "Invoice Date", "value": invoice.InvoiceDate},
		{"title": "Category", "value": evaluation.Category},
		{"title": "Total", "value": invoice.TotalAmount().StringFixed(2)},
		{"title": "Items", "value": fmt.Sprintf("%d", len(invoice.Items))},
		{"title": "Reasons", "value": strings.Join(evaluation.Reasons, "; ")},
	}

	card := map[string]any{
		"type":          "message",
		"correlationId": uuid.NewString(),
		"attachments": []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]any{
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body": []map[string]any{
						{"type": "TextBlock", "size": "Medium", "weight": "Bolder", "text": "Invoice Approval Required"},
						{"type": "TextBlock", "text": filename, "isSubtle": true, "wrap": true},
						{"type": "FactSet", "facts": facts},
					},
					"actions": []map[string]any{
						{"type": "Action.OpenUrl", "title": "Approve", "url": n.actionURL("approve", filename)},
						{"type": "Action.OpenUrl", "title": "Reject", "url": n.actionURL("reject", filename)},
					},
				},
			},
		},
	}

	n.post(card, "approval request", filename)
}

// SendApprovalResult posts a terminal-decision card.
func (n *Notifier) SendApprovalResult(filename string, approved bool, invoiceNumber string) {
	if n.webhookURL == "" {
		return
	}

	title := "Invoice Rejected"
	if approved {
		title = "Invoice Approved"
	}

	card := map[string]any{
		"type":          "message",
		"correlationId": uuid.NewString(),
		"attachments": []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]any{
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body": []map[string]any{
						{"type": "TextBlock", "size": "Medium", "weight": "Bolder", "text": title},
						{"type": "FactSet", "facts": []map[string]string{
							{"title": "Invoice Number", "value": invoiceNumber},
							{"title": "File", "value": filename},
						}},
					},
				},
			},
		},
	}

	n.post(card, "approval result", filename)
}

func (n *Notifier) actionURL(action, filename string) string {
	return fmt.Sprintf("%s/api/invoice/%s/%s", n.baseURL, action, filename)
}

func (n *Notifier) post(payload any, kind, filename string) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("failed to marshal notification", zap.String("kind", kind), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.log.Error("failed to build notification request", zap.String("kind", kind), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("notification send failed", zap.String("kind", kind), zap.String("file", filename), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("notification rejected by webhook",
			zap.String("kind", kind),
			zap.String("file", filename),
			zap.Int("status", resp.StatusCode))
		return
	}
	n.log.Info("notification sent", zap.String("kind", kind), zap.String("file", filename))
}
