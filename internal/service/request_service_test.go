package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRequestRepo records creations and serves canned requests by ID.
type fakeRequestRepo struct {
	created  []*model.Request
	requests map[uint]*model.Request
	nextID   uint
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[uint]*model.Request{}, nextID: 1}
}

func (f *fakeRequestRepo) Create(ctx context.Context, request *model.Request) error {
	request.ID = f.nextID
	f.nextID++
	f.created = append(f.created, request)
	f.requests[request.ID] = request
	return nil
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id uint) (*model.Request, error) {
	if r, ok := f.requests[id]; ok {
		return r, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeRequestRepo) UpdateStatus(ctx context.Context, id uint, newStatus string, comments *string, actor string) (*model.Request, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	r.CurrentStatus = newStatus
	if comments != nil {
		r.Comments = *comments
	}
	r.UpdatedBy = actor
	return r, nil
}

func (f *fakeRequestRepo) List(ctx context.Context, filter repository.RequestFilter, page, limit int) ([]model.Request, int64, error) {
	return nil, 0, nil
}

func (f *fakeRequestRepo) History(ctx context.Context, id uint) ([]model.RequestHistory, error) {
	return []model.RequestHistory{{RequestID: id}}, nil
}

func (f *fakeRequestRepo) FindForExport(ctx context.Context, filter repository.RequestFilter) ([]model.Request, error) {
	return nil, nil
}

func (f *fakeRequestRepo) Insights(ctx context.Context, startDate, endDate string) (model.Insights, error) {
	return model.Insights{}, nil
}

// passthroughTxManager runs the function on the same context, no transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// recordingNotifier captures notification calls; safe for the goroutine sends.
type recordingNotifier struct {
	mu              sync.Mutex
	approvalReqs    []string
	approvalResults []bool
}

func (n *recordingNotifier) SendApprovalRequest(invoice model.InvoiceData, evaluation model.Evaluation, filename string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvalReqs = append(n.approvalReqs, filename)
}

func (n *recordingNotifier) SendApprovalResult(filename string, approved bool, invoiceNumber string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvalResults = append(n.approvalResults, approved)
}

func (n *recordingNotifier) waitForResult(t *testing.T) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n.mu.Lock()
		if len(n.approvalResults) > 0 {
			result := n.approvalResults[0]
			n.mu.Unlock()
			return result
		}
		n.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no approval result received")
	return false
}

type fakeHub struct {
	ch chan []byte
}

func (f *fakeHub) GetBroadcast() chan []byte { return f.ch }

func newTestRequestService(t *testing.T, categories map[string]*model.Category, verdict model.Verdict) (RequestService, *fakeRequestRepo, *fakeCategoryRepo, *recordingNotifier, *fakeHub) {
	t.Helper()
	requests := newFakeRequestRepo()
	categoryRepo := &fakeCategoryRepo{categories: categories}
	reasoner := &fakeReasoner{verdict: verdict}
	evaluator := NewEvaluatorService(categoryRepo, reasoner, 0)
	notifier := &recordingNotifier{}
	hub := &fakeHub{ch: make(chan []byte, 4)}
	svc := NewRequestService(requests, categoryRepo, evaluator, passthroughTxManager{}, notifier, hub)
	return svc, requests, categoryRepo, notifier, hub
}

func TestProcessInvoiceApprovedPath(t *testing.T) {
	categories := map[string]*model.Category{
		"TRAVEL": {CategoryName: "TRAVEL", ApprovalCriteria: "Approve reasonable travel"},
	}
	svc, requests, categoryRepo, _, hub := newTestRequestService(t, categories,
		model.Verdict{Decision: "Approved", Reasons: []string{"Within policy"}})

	result, err := svc.ProcessInvoice(context.Background(), ProcessInvoiceInput{
		UserID:   "user-1",
		Filename: "invoice_Travel.pdf",
		Invoice:  invoiceWith(2, "300.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, result.Request.CurrentStatus)
	assert.Equal(t, model.ApprovalTypeAuto, result.Request.ApprovalType)
	assert.Equal(t, "Within policy", result.Request.Comments)
	assert.Equal(t, "AI", result.Request.CreatedBy)
	require.NotNil(t, result.Request.CategoryName)
	assert.Equal(t, "Travel", *result.Request.CategoryName)

	require.Len(t, requests.created, 1)
	assert.Equal(t, []string{"Travel"}, categoryRepo.increments)

	select {
	case payload := <-hub.ch:
		assert.Contains(t, string(payload), "request_created")
	default:
		t.Fatal("expected a broadcast event")
	}
}

func TestProcessInvoiceJoinsReasons(t *testing.T) {
	categories := map[string]*model.Category{
		"TRAVEL": {CategoryName: "TRAVEL", ApprovalCriteria: "criteria"},
	}
	svc, _, _, _, _ := newTestRequestService(t, categories,
		model.Verdict{Decision: "Rejected", Reasons: []string{"Over budget", "No receipt"}})

	result, err := svc.ProcessInvoice(context.Background(), ProcessInvoiceInput{
		UserID:   "user-1",
		Filename: "invoice_Travel.pdf",
		Invoice:  invoiceWith(1, "100"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Over budget; No receipt", result.Request.Comments)
	assert.Equal(t, model.StatusRejected, result.Request.CurrentStatus)
}

func TestProcessInvoiceMissingCategorySkipsCounter(t *testing.T) {
	svc, requests, categoryRepo, _, _ := newTestRequestService(t, nil, model.Verdict{})

	result, err := svc.ProcessInvoice(context.Background(), ProcessInvoiceInput{
		UserID:   "user-1",
		Filename: "invoice_Nonexistent.pdf",
		Invoice:  invoiceWith(1, "100"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusRejected, result.Request.CurrentStatus)
	assert.Empty(t, categoryRepo.increments)
	require.Len(t, requests.created, 1)
}

func TestProcessInvoiceApprovalTypeFromAmount(t *testing.T) {
	// Threshold fails on item count but the amount alone still sits under the
	// automatic limit.
	categories := map[string]*model.Category{
		"TRAVEL": {CategoryName: "TRAVEL", ApprovalCriteria: "criteria"},
	}
	svc, _, _, _, _ := newTestRequestService(t, categories,
		model.Verdict{Decision: "Approved", Reasons: []string{"ok"}})

	result, err := svc.ProcessInvoice(context.Background(), ProcessInvoiceInput{
		UserID:   "user-1",
		Filename: "invoice_Travel.pdf",
		Invoice:  invoiceWith(6, "500.00"),
	})
	require.NoError(t, err)

	assert.False(t, result.Threshold.Approved)
	assert.Equal(t, model.ApprovalTypeAuto, result.Request.ApprovalType)
}

func TestProcessInvoiceLargeAmountNeedsManualType(t *testing.T) {
	categories := map[string]*model.Category{
		"TRAVEL": {CategoryName: "TRAVEL", ApprovalCriteria: "criteria"},
	}
	svc, _, _, _, _ := newTestRequestService(t, categories,
		model.Verdict{Decision: "Approved", Reasons: []string{"ok"}})

	result, err := svc.ProcessInvoice(context.Background(), ProcessInvoiceInput{
		UserID:   "user-1",
		Filename: "invoice_Travel.pdf",
		Invoice:  invoiceWith(1, "5000.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.ApprovalTypeManual, result.Request.ApprovalType)
}

func TestProcessInvoicePendingSendsApprovalRequest(t *testing.T) {
	svc, _, _, notifier, _ := newTestRequestService(t, map[string]*model.Category{
		"TRAVEL": {CategoryName: "TRAVEL", ApprovalCriteria: "criteria"},
	}, model.Verdict{Decision: "Pending", Reasons: []string{"needs review"}})

	_, err := svc.ProcessInvoice(context.Background(), ProcessInvoiceInput{
		UserID:   "user-1",
		Filename: "invoice_Travel.pdf",
		Invoice:  invoiceWith(1, "100"),
	})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		notifier.mu.Lock()
		n := len(notifier.approvalReqs)
		notifier.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no approval request notification sent")
}

func TestCreateDefaultsToPendingManual(t *testing.T) {
	svc, requests, _, _, _ := newTestRequestService(t, nil, model.Verdict{})

	request, err := svc.Create(context.Background(), CreateRequestInput{UserID: "user-1"}, "ADMIN")
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, request.CurrentStatus)
	assert.Equal(t, model.ApprovalTypeManual, request.ApprovalType)
	assert.Equal(t, "ADMIN", request.CreatedBy)
	require.Len(t, requests.created, 1)
}

func TestCreateRejectsBlankUserID(t *testing.T) {
	svc, _, _, _, _ := newTestRequestService(t, nil, model.Verdict{})

	_, err := svc.Create(context.Background(), CreateRequestInput{UserID: "   "}, "ADMIN")

	assert.True(t, model.IsValidation(err))
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _, _ := newTestRequestService(t, nil, model.Verdict{})

	_, err := svc.Create(context.Background(), CreateRequestInput{UserID: "user-1", Status: "Cancelled"}, "ADMIN")

	assert.True(t, model.IsValidation(err))
}

func TestUpdateStatusNormalizesCasing(t *testing.T) {
	svc, requests, _, notifier, _ := newTestRequestService(t, nil, model.Verdict{})
	number := "INV-9"
	requests.requests[7] = &model.Request{ID: 7, CurrentStatus: model.StatusPending, InvoiceNumber: &number}

	request, err := svc.UpdateStatus(context.Background(), 7, "approved", nil, "reviewer")
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, request.CurrentStatus)
	assert.Equal(t, "reviewer", request.UpdatedBy)
	assert.True(t, notifier.waitForResult(t))
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	svc, _, _, _, _ := newTestRequestService(t, nil, model.Verdict{})

	_, err := svc.UpdateStatus(context.Background(), 1, "escalated", nil, "reviewer")

	assert.True(t, model.IsValidation(err))
}

func TestUpdateStatusUnknownRequest(t *testing.T) {
	svc, _, _, _, _ := newTestRequestService(t, nil, model.Verdict{})

	_, err := svc.UpdateStatus(context.Background(), 99, "Approved", nil, "reviewer")

	assert.True(t, model.IsNotFound(err))
}

func TestHistoryRequiresExistingRequest(t *testing.T) {
	svc, requests, _, _, _ := newTestRequestService(t, nil, model.Verdict{})

	_, err := svc.History(context.Background(), 42)
	assert.True(t, model.IsNotFound(err))

	requests.requests[42] = &model.Request{ID: 42}
	history, err := svc.History(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeriveApprovalType(t *testing.T) {
	approvedThreshold := model.ThresholdResult{Approved: true}
	heldThreshold := model.ThresholdResult{Approved: false}

	assert.Equal(t, model.ApprovalTypeAuto, deriveApprovalType(approvedThreshold, decimal.NewFromInt(9000)))
	assert.Equal(t, model.ApprovalTypeAuto, deriveApprovalType(heldThreshold, decimal.NewFromInt(1999)))
	assert.Equal(t, model.ApprovalTypeManual, deriveApprovalType(heldThreshold, decimal.NewFromInt(2000)))
}
