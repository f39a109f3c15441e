package model

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// InvoiceItem is one line item from the extraction collaborator.
type InvoiceItem struct {
	Name  string `json:"item_name"`
	Price string `json:"item_price"`
}

// InvoiceData is the extraction collaborator contract: structured fields pulled
// from an invoice image by the upstream document-understanding model.
type InvoiceData struct {
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	Items         []InvoiceItem `json:"items"`
	TotalPrice    string        `json:"total_price"`
	CategoryName  string        `json:"category_name,omitempty"`
}

// TotalAmount parses the extracted total into a decimal. Monetary strings are
// pre-sanitized upstream, but currency symbols and thousands separators are
// stripped again here so a raw value never poisons the decision path. An
// unresolvable total parses as zero.
func (d InvoiceData) TotalAmount() decimal.Decimal {
	return ParseAmount(d.TotalPrice)
}

// ItemDescriptions returns the line item names for the reasoning prompt.
func (d InvoiceData) ItemDescriptions() []string {
	descriptions := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		descriptions = append(descriptions, item.Name)
	}
	return descriptions
}

// ParseAmount converts a monetary string to a decimal, tolerating "$" and ","
// leftovers. Unparsable input yields zero.
func ParseAmount(s string) decimal.Decimal {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", ""))
	if cleaned == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// Evaluation is the Approval Evaluator outcome for one invoice.
type Evaluation struct {
	Decision      string   `json:"decision"`
	Reasons       []string `json:"reasons"`
	Category      string   `json:"category"`
	CategoryFound bool     `json:"category_found"`
}

// ThresholdResult is the outcome of the fixed-threshold policy, the lower-tier
// approval path that needs no category criteria.
type ThresholdResult struct {
	Approved    bool            `json:"approved"`
	Status      string          `json:"status"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reasons     []string        `json:"reasons"`
}

// EvaluationInput is what the reasoning collaborator sees: invoice facts plus
// the category's free-text approval criteria.
type EvaluationInput struct {
	Amount           decimal.Decimal
	ItemCount        int
	ItemDescriptions []string
	Criteria         string
}

// Verdict is the raw reasoning collaborator response. The decision string is
// not trusted until it passes the evaluator's normalization.
type Verdict struct {
	Decision string   `json:"decision"`
	Reasons  []string `json:"reasons"`
}

// ReasoningClient is the outbound contract for the text-generation collaborator.
type ReasoningClient interface {
	EvaluateInvoice(ctx context.Context, in EvaluationInput) (Verdict, error)
}
