package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/egreed-contracts/internal/http/middleware"
	"github.com/nurpe/egreed-contracts/internal/model"
	"github.com/nurpe/egreed-contracts/internal/payment"
	"github.com/nurpe/egreed-contracts/internal/service"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	contracts *service.ContractService
	payments  *service.PaymentService
	documents *service.DocumentService
	log       zerolog.Logger
}

func NewHandler(
	contracts *service.ContractService,
	payments *service.PaymentService,
	documents *service.DocumentService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		contracts: contracts,
		payments:  payments,
		documents: documents,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware, publicLimiter gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.GET("/contracts", h.listContracts)
	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/export", h.exportContracts)
	protected.GET("/contracts/:ref", h.getContract)
	protected.GET("/contracts/:ref/pdf", h.contractPDF)
	protected.GET("/contracts/:ref/audit", h.listAudit)
	protected.GET("/contracts/:ref/payments", h.listPayments)
	protected.POST("/contracts/:ref/sign/developer", h.signAsDeveloper)
	protected.PATCH("/contracts/:ref/payment-status", h.updatePaymentStatus)
	protected.POST("/contracts/:ref/reminder", h.sendReminder)
	protected.POST("/contracts/:ref/complete", h.completeContract)
	protected.POST("/contracts/:ref/expire", h.expireContract)
	protected.POST("/clients", h.createClient)
	protected.POST("/payments/:provider/verify", h.verifyPayment)

	public := router.Group("/public")
	public.GET("/contracts/:ref", h.publicContract)
	public.GET("/contracts/:ref/signature-status", h.signatureStatus)
	public.POST("/contracts/:ref/sign", publicLimiter, h.signAsClient)
	public.POST("/payments/:provider/initiate", publicLimiter, h.initiatePayment)

	router.POST("/webhooks/:provider", h.webhook)
}

type createContractRequest struct {
	ClientID    string  `json:"client_id" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	Amount      float64 `json:"amount" binding:"required"`
	Currency    string  `json:"currency"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}

	result, err := h.contracts.CreateContract(c.Request.Context(), service.CreateContractInput{
		ClientID:    clientID,
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		StartDate:   start,
		EndDate:     end,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"contract":               toContractResponse(result.Contract),
		"access_code_expires_at": result.AccessCode.ExpiresAt,
	})
}

func (h *Handler) listContracts(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contracts, err := h.contracts.ListContracts(c.Request.Context(), filter, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]contractResponse, 0, len(contracts))
	for i := range contracts {
		items = append(items, toContractResponse(&contracts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) exportContracts(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.documents.ExportContracts(c.Request.Context(), filter, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) getContract(c *gin.Context) {
	if _, ok := middleware.MustPrincipal(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) contractPDF(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.documents.RenderContractPDF(c.Request.Context(), c.Param("ref"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) listAudit(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	entries, err := h.contracts.ListAudit(c.Request.Context(), c.Param("ref"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]auditResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toAuditResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) listPayments(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	payments, err := h.payments.ListPayments(c.Request.Context(), c.Param("ref"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type signRequest struct {
	Signature  string `json:"signature" binding:"required"`
	AccessCode string `json:"access_code"`
}

func (h *Handler) signAsDeveloper(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.SignAsDeveloper(c.Request.Context(), service.SignAsDeveloperInput{
		ContractRef: c.Param("ref"),
		Signature:   req.Signature,
		Principal:   principal,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) signAsClient(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.SignAsClient(c.Request.Context(), service.SignAsClientInput{
		ContractRef: c.Param("ref"),
		Signature:   req.Signature,
		AccessCode:  req.AccessCode,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Contract signed successfully",
		"status":  contract.Status,
	})
}

type updatePaymentStatusRequest struct {
	PaymentStatus string  `json:"payment_status" binding:"required"`
	TransactionID *string `json:"transaction_id"`
	PaymentMethod *string `json:"payment_method"`
}

func (h *Handler) updatePaymentStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var method *model.PaymentMethod
	if req.PaymentMethod != nil {
		m := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(*req.PaymentMethod)))
		method = &m
	}

	contract, err := h.contracts.UpdatePaymentStatus(c.Request.Context(), service.UpdatePaymentStatusInput{
		ContractRef:   c.Param("ref"),
		Status:        model.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.PaymentStatus))),
		TransactionID: req.TransactionID,
		Method:        method,
		Principal:     principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) sendReminder(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.contracts.SendReminder(c.Request.Context(), c.Param("ref"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                true,
		"message":                "Reminder sent successfully",
		"access_code_expires_at": result.ExpiresAt,
		"access_code_reissued":   result.Reissued,
	})
}

func (h *Handler) completeContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contract, err := h.contracts.CompleteContract(c.Request.Context(), c.Param("ref"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) expireContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contract, err := h.contracts.ExpireContract(c.Request.Context(), c.Param("ref"), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

type createClientRequest struct {
	FullName string  `json:"full_name" binding:"required"`
	Email    string  `json:"email" binding:"required"`
	Phone    *string `json:"phone"`
	Company  *string `json:"company"`
}

func (h *Handler) createClient(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.contracts.CreateClient(c.Request.Context(), service.CreateClientInput{
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClientResponse(client))
}

func (h *Handler) publicContract(c *gin.Context) {
	contract, err := h.contracts.GetContract(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPublicContractResponse(contract))
}

func (h *Handler) signatureStatus(c *gin.Context) {
	status, err := h.contracts.GetSignatureStatus(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type initiatePaymentRequest struct {
	ContractRef string   `json:"contract_ref" binding:"required"`
	Amount      *float64 `json:"amount"`
	Currency    string   `json:"currency"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Carrier     string   `json:"carrier"`
}

func (h *Handler) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.payments.InitiatePayment(c.Request.Context(), service.InitiatePaymentInput{
		Provider:    c.Param("provider"),
		ContractRef: req.ContractRef,
		Amount:      req.Amount,
		Currency:    req.Currency,
		PayerEmail:  req.Email,
		PayerName:   req.Name,
		PayerPhone:  req.Phone,
		Carrier:     req.Carrier,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInitiationResponse(result))
}

type verifyPaymentRequest struct {
	TransactionRef string `json:"transaction_ref" binding:"required"`
}

func (h *Handler) verifyPayment(c *gin.Context) {
	if _, ok := middleware.MustPrincipal(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.payments.VerifyPayment(c.Request.Context(), c.Param("provider"), req.TransactionRef)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         result.Status,
		"payment":        toPaymentResponse(*result.Payment),
		"payment_status": result.Contract.PaymentStatus,
	})
}

func (h *Handler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, err := h.payments.HandleWebhook(c.Request.Context(), c.Param("provider"), c.Request.Header, body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if result.Ignored {
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "status": result.Verify.Status})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrProcessingFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": payment.ErrProcessingFailed.Error()})
	case errors.Is(err, payment.ErrVerificationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": payment.ErrVerificationFailed.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseFilter(c *gin.Context) (model.ContractFilter, error) {
	var filter model.ContractFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.ContractStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return filter, errors.New("invalid status")
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("payment_status")); raw != "" {
		status := model.PaymentStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return filter, errors.New("invalid payment_status")
		}
		filter.PaymentStatus = &status
	}
	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid client_id")
		}
		filter.ClientID = &id
	}
	return filter, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, service.ErrInvalidInput
}
