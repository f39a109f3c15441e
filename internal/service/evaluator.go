package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCategory is used when a filename carries no category hint.
	DefaultCategory = "General"

	// pendingOverrideCategory is a fixed policy exception: requests filed
	// under this category are always held for manual review, regardless of
	// criteria. It is a documented business override, not a general rule.
	pendingOverrideCategory = "CENTRICONOTCARES"

	// Fixed-threshold policy bounds, both exclusive.
	thresholdMaxItems = 5
)

// thresholdMaxAmount is the fixed-threshold policy amount cap, exclusive.
var thresholdMaxAmount = decimal.NewFromInt(2000)

// failureKeywords flag reasoning output whose stated reasons contradict an
// Approved decision.
var failureKeywords = []string{
	"not met", "does not meet", "failed", "exceeds",
	"insufficient", "missing", "invalid", "rejected",
}

// EvaluatorService turns extracted invoice facts plus category criteria into a
// decision. Two independent policies exist: the criteria-based path consulting
// the reasoning collaborator, and the fixed-threshold path that needs neither
// a category nor the collaborator.
type EvaluatorService interface {
	ExtractCategoryFromFilename(filename string) string
	EvaluateWithCategory(ctx context.Context, filename string, invoice model.InvoiceData) model.Evaluation
	Evaluate(ctx context.Context, invoice model.InvoiceData, criteria string, hasCriteria bool) model.Evaluation
	CheckThreshold(invoice model.InvoiceData) model.ThresholdResult
}

type evaluatorService struct {
	categories repository.CategoryRepository
	reasoner   model.ReasoningClient
	timeout    time.Duration
}

// NewEvaluatorService wires the evaluator. reasoner may be nil when no
// reasoning collaborator is configured; criteria evaluation then degrades to
// Pending.
func NewEvaluatorService(categories repository.CategoryRepository, reasoner model.ReasoningClient, timeout time.Duration) EvaluatorService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &evaluatorService{categories: categories, reasoner: reasoner, timeout: timeout}
}

// ExtractCategoryFromFilename reads the category from the filename convention
// PREFIX_CATEGORYNAME.ext: everything after the first underscore of the stem.
// No underscore, or nothing after it, means "General".
func (s *evaluatorService) ExtractCategoryFromFilename(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	_, rest, found := strings.Cut(stem, "_")
	rest = strings.TrimSpace(rest)
	if !found || rest == "" {
		return DefaultCategory
	}
	return rest
}

// EvaluateWithCategory runs the complete criteria path: category from
// filename, criteria lookup, reasoning, then the post-decision business
// re-checks.
func (s *evaluatorService) EvaluateWithCategory(ctx context.Context, filename string, invoice model.InvoiceData) model.Evaluation {
	category := s.ExtractCategoryFromFilename(filename)

	if strings.EqualFold(category, pendingOverrideCategory) {
		return model.Evaluation{
			Decision:      model.StatusPending,
			Reasons:       []string{"Criteria not met"},
			Category:      category,
			CategoryFound: true,
		}
	}

	criteria, categoryRecord := s.lookupCriteria(ctx, category)
	hasCriteria := criteria != ""

	result := s.Evaluate(ctx, invoice, criteria, hasCriteria)
	result.Category = category
	result.CategoryFound = hasCriteria

	// Post-decision business rule: a configured spending cap beats the
	// reasoning verdict.
	if hasCriteria && result.Decision == model.StatusApproved &&
		categoryRecord != nil && categoryRecord.MaximumAmount != nil {
		total := invoice.TotalAmount()
		if total.GreaterThan(*categoryRecord.MaximumAmount) {
			result.Decision = model.StatusPending
			reason := fmt.Sprintf("Invoice amount %s exceeds category maximum %s",
				total.StringFixed(2), categoryRecord.MaximumAmount.StringFixed(2))
			result.Reasons = append([]string{reason}, result.Reasons...)
		}
	}

	return result
}

// Evaluate decides on one invoice given criteria text. Missing criteria is the
// only configuration state that yields an automatic Rejected; a missing or
// failing reasoning collaborator always degrades to Pending, never approves.
func (s *evaluatorService) Evaluate(ctx context.Context, invoice model.InvoiceData, criteria string, hasCriteria bool) model.Evaluation {
	if !hasCriteria {
		return model.Evaluation{
			Decision: model.StatusRejected,
			Reasons:  []string{"Category not found in database"},
		}
	}

	if s.reasoner == nil {
		return model.Evaluation{
			Decision: model.StatusPending,
			Reasons:  []string{"Reasoning collaborator not configured. Manual review required."},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verdict, err := s.reasoner.EvaluateInvoice(callCtx, model.EvaluationInput{
		Amount:           invoice.TotalAmount(),
		ItemCount:        len(invoice.Items),
		ItemDescriptions: invoice.ItemDescriptions(),
		Criteria:         criteria,
	})
	if err != nil {
		return model.Evaluation{
			Decision: model.StatusPending,
			Reasons:  []string{fmt.Sprintf("Reasoning collaborator unavailable: %v. Manual review required.", err)},
		}
	}

	decision := normalizeDecision(verdict.Decision)
	reasons := verdict.Reasons
	if len(reasons) == 0 {
		reasons = []string{"Model evaluation completed"}
	}

	// Defensive re-check: an Approved verdict whose own reasons read like a
	// failure is inconsistent and gets held for review.
	if decision == model.StatusApproved && containsFailureLanguage(reasons) {
		decision = model.StatusPending
		reasons = append([]string{"Criteria not fully met - requires manual review"}, reasons...)
	}

	return model.Evaluation{Decision: decision, Reasons: reasons}
}

// CheckThreshold is the filename-free lower-tier policy: approve only when the
// invoice has fewer than 5 items and a total under 2000, otherwise hold.
func (s *evaluatorService) CheckThreshold(invoice model.InvoiceData) model.ThresholdResult {
	itemCount := len(invoice.Items)
	total := invoice.TotalAmount()

	itemsOK := itemCount < thresholdMaxItems
	amountOK := total.LessThan(thresholdMaxAmount)
	approved := itemsOK && amountOK

	var reasons []string
	if !itemsOK {
		reasons = append(reasons, fmt.Sprintf("Item count (%d) >= %d", itemCount, thresholdMaxItems))
	}
	if !amountOK {
		reasons = append(reasons, fmt.Sprintf("Total amount ($%s) >= $%s", total.StringFixed(2), thresholdMaxAmount.StringFixed(0)))
	}

	status := model.StatusPending
	if approved {
		status = model.StatusApproved
		reasons = []string{"All approval criteria met"}
	}

	return model.ThresholdResult{
		Approved:    approved,
		Status:      status,
		ItemCount:   itemCount,
		TotalAmount: total,
		Reasons:     reasons,
	}
}

func (s *evaluatorService) lookupCriteria(ctx context.Context, category string) (string, *model.Category) {
	record, err := s.categories.FindByName(ctx, category)
	if err != nil || record == nil {
		return "", nil
	}
	return strings.TrimSpace(record.ApprovalCriteria), record
}

// normalizeDecision is the single place that coerces reasoning collaborator
// output onto the closed decision set. Anything unrecognized becomes Pending.
func normalizeDecision(decision string) string {
	switch strings.TrimSpace(decision) {
	case model.StatusApproved:
		return model.StatusApproved
	case model.StatusRejected:
		return model.StatusRejected
	case model.StatusPending:
		return model.StatusPending
	default:
		return model.StatusPending
	}
}

func containsFailureLanguage(reasons []string) bool {
	text := strings.ToLower(strings.Join(reasons, " "))
	for _, keyword := range failureKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
