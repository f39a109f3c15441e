package llm

import (
	"fmt"
	"strings"

	"backend/internal/model"
)

// buildApprovalPrompt frames the invoice facts against the category criteria.
// The model must answer with JSON only; anything else is handled by the
// verdict parser and the evaluator's normalization.
func buildApprovalPrompt(in model.EvaluationInput) string {
	descriptions := in.ItemDescriptions
	if len(descriptions) > 5 {
		descriptions = descriptions[:5]
	}

	var b strings.Builder
	b.WriteString("You are a strict invoice approval system. Compare the invoice details against the approval criteria.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. If ANY criterion is NOT met, decision MUST be \"Pending\".\n")
	b.WriteString("2. ONLY use \"Approved\" if ALL criteria are satisfied.\n")
	b.WriteString("3. Respond ONLY with valid JSON in this exact format:\n")
	b.WriteString("{\"decision\": \"Approved\" or \"Pending\", \"reasons\": [\"reason1\", \"reason2\"]}\n\n")
	b.WriteString("Invoice Details:\n")
	fmt.Fprintf(&b, "- Total Amount: %s\n", in.Amount.StringFixed(2))
	fmt.Fprintf(&b, "- Number of Items: %d\n", in.ItemCount)
	fmt.Fprintf(&b, "- Items: %s\n\n", strings.Join(descriptions, ", "))
	b.WriteString("Approval Criteria:\n")
	b.WriteString(in.Criteria)
	b.WriteString("\n\nRespond with JSON only:\n")
	return b.String()
}
