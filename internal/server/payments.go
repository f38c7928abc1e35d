package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
)

type paymentItemRequest struct {
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
}

type recordPaymentRequest struct {
	ContractID  string               `json:"contract_id"`
	PartnerID   string               `json:"partner_id"`
	PropertyID  string               `json:"property_id"`
	TenantID    string               `json:"tenant_id"`
	Invoices    []paymentItemRequest `json:"invoices"`
	PaymentDate *time.Time           `json:"payment_date,omitempty"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contractID, err := snowflake.ParseString(req.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_id", "invalid id"))
		return
	}

	items := make([]paymentdomain.PaymentInvoiceItem, 0, len(req.Invoices))
	for _, item := range req.Invoices {
		invoiceID, err := snowflake.ParseString(item.InvoiceID)
		if err != nil {
			AbortWithError(c, newValidationError("invoices", "invalid_id", "invalid invoice id"))
			return
		}
		items = append(items, paymentdomain.PaymentInvoiceItem{InvoiceID: invoiceID, Amount: item.Amount})
	}

	partnerID, _ := snowflake.ParseString(req.PartnerID)
	propertyID, _ := snowflake.ParseString(req.PropertyID)
	tenantID, _ := snowflake.ParseString(req.TenantID)

	var paidAt time.Time
	if req.PaymentDate != nil {
		paidAt = *req.PaymentDate
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		ContractID:  contractID,
		PartnerID:   partnerID,
		PropertyID:  propertyID,
		TenantID:    tenantID,
		Invoices:    items,
		PaymentDate: paidAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createRefundRequest struct {
	ContractID        string  `json:"contract_id"`
	PartnerID         string  `json:"partner_id"`
	PropertyID        string  `json:"property_id"`
	TenantID          string  `json:"tenant_id"`
	Amount            float64 `json:"amount"`
	IsFinalSettlement bool    `json:"is_final_settlement"`
}

func (s *Server) CreateRefund(c *gin.Context) {
	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contractID, err := snowflake.ParseString(req.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_id", "invalid id"))
		return
	}

	partnerID, _ := snowflake.ParseString(req.PartnerID)
	propertyID, _ := snowflake.ParseString(req.PropertyID)
	tenantID, _ := snowflake.ParseString(req.TenantID)

	resp, err := s.paymentSvc.CreateRefund(c.Request.Context(), paymentdomain.CreateRefundRequest{
		ContractID:        contractID,
		PartnerID:         partnerID,
		PropertyID:        propertyID,
		TenantID:          tenantID,
		Amount:            req.Amount,
		IsFinalSettlement: req.IsFinalSettlement,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CompleteRefund(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.MarkRefundCompleted(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) FailRefund(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.MarkRefundFailed(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContractPayments(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListByContract(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
