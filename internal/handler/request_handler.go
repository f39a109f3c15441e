package handler

import (
	"fmt"
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
	exportService  service.ExportService
}

func NewRequestHandler(requestService service.RequestService, exportService service.ExportService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		exportService:  exportService,
	}
}

// RegisterRoutes binds the request endpoints to the gin RouterGroup
func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests", middleware.RequireAuth())
	{
		requests.POST("", h.CreateRequest)
		requests.POST("/process", h.ProcessInvoice)
		requests.GET("", h.ListRequests)
		requests.GET("/export", h.ExportRequests)
		requests.GET("/insights", h.GetInsights)
		requests.GET("/:id", h.GetRequest)
		requests.PATCH("/:id/status", h.UpdateRequestStatus)
		requests.GET("/:id/history", h.GetRequestHistory)
	}
}

type processInvoiceRequest struct {
	Filename string            `json:"filename" binding:"required"`
	Invoice  model.InvoiceData `json:"invoice" binding:"required"`
}

type updateStatusRequest struct {
	Status   string  `json:"status" binding:"required"`
	Comments *string `json:"comments"`
}

// ProcessInvoice handles POST /requests/process
// @Summary      Process an extracted invoice
// @Description  Runs extracted invoice fields through category lookup, threshold check and criteria evaluation, then persists the resulting request with its history row
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      handler.processInvoiceRequest  true  "Extracted Invoice Payload"
// @Success      201      {object}  response.Response{data=service.ProcessInvoiceResult}
// @Failure      400      {object}  response.Response
// @Router       /requests/process [post]
func (h *RequestHandler) ProcessInvoice(c *gin.Context) {
	var req processInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.ProcessInvoice(c.Request.Context(), service.ProcessInvoiceInput{
		UserID:   middleware.ActorFromContext(c),
		Filename: req.Filename,
		Invoice:  req.Invoice,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// CreateRequest handles POST /requests
// @Summary      Create a request directly
// @Description  Records a request without running evaluation; status defaults to Pending
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestInput  true  "Create Request Payload"
// @Success      201      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Router       /requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var in service.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	request, err := h.requestService.Create(c.Request.Context(), in, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, request))
}

// ListRequests handles GET /requests
// @Summary      List requests
// @Description  Returns requests matching the status, category and creation date filters, paginated, newest first. Pass "all" (any casing) to disable the status or category filter.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "Status filter (Pending, Approved, Rejected or all)"
// @Param        category    query     string  false  "Category filter (exact name or all)"
// @Param        start_date  query     string  false  "Creation date lower bound (YYYY-MM-DD, inclusive)"
// @Param        end_date    query     string  false  "Creation date upper bound (YYYY-MM-DD, inclusive)"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      400         {object}  response.Response
// @Router       /requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	params := pagination.Parse(c)
	filter := filterFromQuery(c)

	requests, total, err := h.requestService.List(c.Request.Context(), filter, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetRequest handles GET /requests/:id
// @Summary      Get request by ID
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.Request}
// @Failure      404  {object}  response.Response
// @Router       /requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	request, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// UpdateRequestStatus handles PATCH /requests/:id/status
// @Summary      Update request status
// @Description  Moves a request to a new status, recording the actor and an optional comment in the history
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                           true  "Request ID"
// @Param        payload  body      handler.updateStatusRequest   true  "Status Update Payload"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /requests/{id}/status [patch]
func (h *RequestHandler) UpdateRequestStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	request, err := h.requestService.UpdateStatus(c.Request.Context(), id, req.Status, req.Comments, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// GetRequestHistory handles GET /requests/:id/history
// @Summary      Get request history
// @Description  Returns the append-only status history for a request, newest first
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]model.RequestHistory}
// @Failure      404  {object}  response.Response
// @Router       /requests/{id}/history [get]
func (h *RequestHandler) GetRequestHistory(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	history, err := h.requestService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// GetInsights handles GET /requests/insights
// @Summary      Request insights
// @Description  Returns aggregate counts and summed amounts grouped by status, optionally bounded by creation date
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query     string  false  "Creation date lower bound (YYYY-MM-DD, inclusive)"
// @Param        end_date    query     string  false  "Creation date upper bound (YYYY-MM-DD, inclusive)"
// @Success      200         {object}  response.Response{data=model.Insights}
// @Failure      500         {object}  response.Response
// @Router       /requests/insights [get]
func (h *RequestHandler) GetInsights(c *gin.Context) {
	insights, err := h.requestService.Insights(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, insights))
}

// ExportRequests handles GET /requests/export
// @Summary      Export requests
// @Description  Streams the filtered request set as an xlsx workbook
// @Tags         requests
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        status      query  string  false  "Status filter (Pending, Approved, Rejected or all)"
// @Param        category    query  string  false  "Category filter (exact name or all)"
// @Param        start_date  query  string  false  "Creation date lower bound (YYYY-MM-DD, inclusive)"
// @Param        end_date    query  string  false  "Creation date upper bound (YYYY-MM-DD, inclusive)"
// @Success      200         {file}  binary
// @Failure      400         {object}  response.Response
// @Router       /requests/export [get]
func (h *RequestHandler) ExportRequests(c *gin.Context) {
	filter := filterFromQuery(c)

	rows, err := h.requestService.ExportRows(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	workbook, err := h.exportService.BuildWorkbook(rows)
	if err != nil {
		respondError(c, err)
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("requests_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

func filterFromQuery(c *gin.Context) repository.RequestFilter {
	return repository.RequestFilter{
		Status:    c.Query("status"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Category:  c.Query("category"),
	}
}
