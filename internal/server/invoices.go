package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
)

type obligationEntryRequest struct {
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

type createInvoiceRequest struct {
	ContractID string `json:"contract_id"`
	PartnerID  string `json:"partner_id"`
	PropertyID string `json:"property_id"`
	AccountID  string `json:"account_id"`

	InvoiceType       string `json:"invoice_type"`
	IsFinalSettlement bool   `json:"is_final_settlement"`

	InvoiceTotal     float64 `json:"invoice_total"`
	PayoutableAmount float64 `json:"payoutable_amount"`

	CommissionsMeta []obligationEntryRequest `json:"commissions_meta,omitempty"`
	AddonsMeta      []obligationEntryRequest `json:"addons_meta,omitempty"`
	InvoiceContent  []obligationEntryRequest `json:"invoice_content,omitempty"`

	InvoiceStartOn *time.Time `json:"invoice_start_on,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
}

func toObligationList(entries []obligationEntryRequest) invoicedomain.ObligationList {
	if len(entries) == 0 {
		return nil
	}
	list := make(invoicedomain.ObligationList, 0, len(entries))
	for _, e := range entries {
		list = append(list, invoicedomain.ObligationEntry{Label: e.Label, Total: e.Total})
	}
	return list
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contractID, err := snowflake.ParseString(req.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_id", "invalid id"))
		return
	}

	invoiceType := invoicedomain.InvoiceType(req.InvoiceType)
	switch invoiceType {
	case invoicedomain.InvoiceTypeRent, invoicedomain.InvoiceTypeCreditNote,
		invoicedomain.InvoiceTypeLandlord, invoicedomain.InvoiceTypeLandlordCreditNote:
	default:
		AbortWithError(c, newValidationError("invoice_type", "invalid_invoice_type", "invalid invoice type"))
		return
	}

	partnerID, _ := snowflake.ParseString(req.PartnerID)
	propertyID, _ := snowflake.ParseString(req.PropertyID)
	accountID, _ := snowflake.ParseString(req.AccountID)

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		ContractID:        contractID,
		PartnerID:         partnerID,
		PropertyID:        propertyID,
		AccountID:         accountID,
		InvoiceType:       invoiceType,
		IsFinalSettlement: req.IsFinalSettlement,
		InvoiceTotal:      req.InvoiceTotal,
		PayoutableAmount:  req.PayoutableAmount,
		CommissionsMeta:   toObligationList(req.CommissionsMeta),
		AddonsMeta:        toObligationList(req.AddonsMeta),
		InvoiceContent:    toObligationList(req.InvoiceContent),
		InvoiceStartOn:    req.InvoiceStartOn,
		DueDate:           req.DueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContractInvoices(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.ListByContract(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type invoiceAmountRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) CreditInvoice(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoiceAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Credit(c.Request.Context(), id, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkInvoiceLost(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoiceAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.MarkLost(c.Request.Context(), id, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
