package service

import (
	"context"
	"encoding/json"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
)

// autoApproveLimit is the amount below which an automated pipeline decision
// counts as Auto even when the threshold policy did not approve outright.
var autoApproveLimit = decimal.NewFromInt(2000)

// --- DTOs ---

type CreateRequestInput struct {
	UserID        string           `json:"user_id" binding:"required"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	InvoiceDate   *string          `json:"invoice_date"`
	InvoiceNumber *string          `json:"invoice_number"`
	CategoryName  *string          `json:"category_name"`
	Comments      *string          `json:"comments"`
	ApprovalType  string           `json:"approval_type"`
	Status        string           `json:"status"`
}

type ProcessInvoiceInput struct {
	UserID   string            `json:"user_id" binding:"required"`
	Filename string            `json:"filename" binding:"required"`
	Invoice  model.InvoiceData `json:"invoice" binding:"required"`
}

// ProcessInvoiceResult pairs the persisted request with the evaluation and the
// threshold-policy outcome that drove it.
type ProcessInvoiceResult struct {
	Request    *model.Request        `json:"request"`
	Evaluation model.Evaluation      `json:"evaluation"`
	Threshold  model.ThresholdResult `json:"threshold"`
}

// Notifier is the outbound chat collaborator contract. Calls are
// fire-and-forget; failures must never abort the lifecycle.
type Notifier interface {
	SendApprovalRequest(invoice model.InvoiceData, evaluation model.Evaluation, filename string)
	SendApprovalResult(filename string, approved bool, invoiceNumber string)
}

// Broadcaster pushes live events to connected dashboard clients.
type Broadcaster interface {
	GetBroadcast() chan []byte
}

// --- Interface ---

// RequestService orchestrates the path from extracted invoice fields to a
// persisted, audited request record, plus all read paths over the store.
type RequestService interface {
	ProcessInvoice(ctx context.Context, in ProcessInvoiceInput) (*ProcessInvoiceResult, error)
	Create(ctx context.Context, in CreateRequestInput, actor string) (*model.Request, error)
	Get(ctx context.Context, id uint) (*model.Request, error)
	UpdateStatus(ctx context.Context, id uint, newStatus string, comments *string, actor string) (*model.Request, error)
	List(ctx context.Context, filter repository.RequestFilter, page, limit int) ([]model.Request, int64, error)
	History(ctx context.Context, id uint) ([]model.RequestHistory, error)
	Insights(ctx context.Context, startDate, endDate string) (model.Insights, error)
	ExportRows(ctx context.Context, filter repository.RequestFilter) ([]model.Request, error)
}

type requestService struct {
	requests   repository.RequestRepository
	categories repository.CategoryRepository
	evaluator  EvaluatorService
	txManager  repository.TransactionManager
	notifier   Notifier
	hub        Broadcaster
}

func NewRequestService(
	requests repository.RequestRepository,
	categories repository.CategoryRepository,
	evaluator EvaluatorService,
	txManager repository.TransactionManager,
	notifier Notifier,
	hub Broadcaster,
) RequestService {
	return &requestService{
		requests:   requests,
		categories: categories,
		evaluator:  evaluator,
		txManager:  txManager,
		notifier:   notifier,
		hub:        hub,
	}
}

// --- Implementation ---

// ProcessInvoice runs the automated pipeline: threshold check, category
// criteria evaluation, request creation with the computed status, and
// downstream notifications.
func (s *requestService) ProcessInvoice(ctx context.Context, in ProcessInvoiceInput) (*ProcessInvoiceResult, error) {
	threshold := s.evaluator.CheckThreshold(in.Invoice)
	evaluation := s.evaluator.EvaluateWithCategory(ctx, in.Filename, in.Invoice)

	total := in.Invoice.TotalAmount()
	invoiceDate := in.Invoice.InvoiceDate
	invoiceNumber := in.Invoice.InvoiceNumber

	request := &model.Request{
		UserID:        in.UserID,
		TotalAmount:   &total,
		CategoryName:  &evaluation.Category,
		CurrentStatus: evaluation.Decision,
		Comments:      strings.Join(evaluation.Reasons, "; "),
		ApprovalType:  deriveApprovalType(threshold, total),
		CreatedBy:     "AI",
		UpdatedBy:     "AI",
	}
	if invoiceDate != "" {
		request.InvoiceDate = &invoiceDate
	}
	if invoiceNumber != "" {
		request.InvoiceNumber = &invoiceNumber
	}

	// Request row, its history row, and the category counter move together.
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Create(txCtx, request); err != nil {
			return err
		}
		if evaluation.CategoryFound {
			return s.categories.IncrementRequestCount(txCtx, evaluation.Category)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(in.Invoice, evaluation, in.Filename)
	s.broadcast("request_created", request)

	return &ProcessInvoiceResult{Request: request, Evaluation: evaluation, Threshold: threshold}, nil
}

// Create handles manual/API creation. Status defaults to Pending and approval
// type to Manual unless the caller overrides them.
func (s *requestService) Create(ctx context.Context, in CreateRequestInput, actor string) (*model.Request, error) {
	status := model.StatusPending
	if in.Status != "" {
		normalized, err := model.NormalizeStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = normalized
	}

	approvalType := model.ApprovalTypeManual
	if strings.EqualFold(in.ApprovalType, model.ApprovalTypeAuto) {
		approvalType = model.ApprovalTypeAuto
	}

	if strings.TrimSpace(in.UserID) == "" {
		return nil, model.NewValidationError("User ID is required")
	}

	comments := ""
	if in.Comments != nil {
		comments = *in.Comments
	}

	request := &model.Request{
		UserID:        in.UserID,
		TotalAmount:   in.TotalAmount,
		InvoiceDate:   in.InvoiceDate,
		InvoiceNumber: in.InvoiceNumber,
		CategoryName:  in.CategoryName,
		CurrentStatus: status,
		Comments:      comments,
		ApprovalType:  approvalType,
		CreatedBy:     actor,
		UpdatedBy:     actor,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}

	s.broadcast("request_created", request)
	return request, nil
}

func (s *requestService) Get(ctx context.Context, id uint) (*model.Request, error) {
	return s.requests.FindByID(ctx, id)
}

func (s *requestService) UpdateStatus(ctx context.Context, id uint, newStatus string, comments *string, actor string) (*model.Request, error) {
	status, err := model.NormalizeStatus(newStatus)
	if err != nil {
		return nil, err
	}

	request, err := s.requests.UpdateStatus(ctx, id, status, comments, actor)
	if err != nil {
		return nil, err
	}

	if status != model.StatusPending && s.notifier != nil {
		invoiceNumber := ""
		if request.InvoiceNumber != nil {
			invoiceNumber = *request.InvoiceNumber
		}
		go s.notifier.SendApprovalResult(invoiceNumber, status == model.StatusApproved, invoiceNumber)
	}
	s.broadcast("request_status_changed", request)

	return request, nil
}

func (s *requestService) List(ctx context.Context, filter repository.RequestFilter, page, limit int) ([]model.Request, int64, error) {
	return s.requests.List(ctx, filter, page, limit)
}

func (s *requestService) History(ctx context.Context, id uint) ([]model.RequestHistory, error) {
	if _, err := s.requests.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.requests.History(ctx, id)
}

func (s *requestService) Insights(ctx context.Context, startDate, endDate string) (model.Insights, error) {
	return s.requests.Insights(ctx, startDate, endDate)
}

func (s *requestService) ExportRows(ctx context.Context, filter repository.RequestFilter) ([]model.Request, error) {
	return s.requests.FindForExport(ctx, filter)
}

// deriveApprovalType marks a request Auto when the threshold policy already
// approved it or the amount sits under the automatic limit; anything larger
// needs a person.
func deriveApprovalType(threshold model.ThresholdResult, total decimal.Decimal) string {
	if threshold.Approved || total.LessThan(autoApproveLimit) {
		return model.ApprovalTypeAuto
	}
	return model.ApprovalTypeManual
}

func (s *requestService) notifyDecision(invoice model.InvoiceData, evaluation model.Evaluation, filename string) {
	if s.notifier == nil {
		return
	}
	if evaluation.Decision == model.StatusPending {
		go s.notifier.SendApprovalRequest(invoice, evaluation, filename)
		return
	}
	go s.notifier.SendApprovalResult(filename, evaluation.Decision == model.StatusApproved, invoice.InvoiceNumber)
}

func (s *requestService) broadcast(event string, request *model.Request) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event":      event,
		"request_id": request.ID,
		"status":     request.CurrentStatus,
		"category":   request.CategoryName,
		"amount":     request.TotalAmount,
	})
	if err != nil {
		return
	}
	select {
	case s.hub.GetBroadcast() <- payload:
	default:
		// No listeners or a saturated hub never blocks the lifecycle.
	}
}
