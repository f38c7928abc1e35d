package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
)

type createCorrectionRequest struct {
	ContractID string  `json:"contract_id"`
	PartnerID  string  `json:"partner_id"`
	PropertyID string  `json:"property_id"`
	Amount     float64 `json:"amount"`
	AddTo      string  `json:"add_to"`
	Note       string  `json:"note"`
}

type updateCorrectionRequest struct {
	Amount *float64 `json:"amount,omitempty"`
	Note   *string  `json:"note,omitempty"`
}

func (s *Server) CreateCorrection(c *gin.Context) {
	var req createCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contractID, err := snowflake.ParseString(req.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_id", "invalid id"))
		return
	}

	addTo := correctiondomain.CorrectionTarget(strings.TrimSpace(req.AddTo))
	if addTo != correctiondomain.CorrectionTargetRentInvoice && addTo != correctiondomain.CorrectionTargetPayout {
		AbortWithError(c, newValidationError("add_to", "invalid_add_to", "invalid correction target"))
		return
	}

	partnerID, _ := snowflake.ParseString(req.PartnerID)
	propertyID, _ := snowflake.ParseString(req.PropertyID)

	resp, err := s.correctionSvc.Create(c.Request.Context(), correctiondomain.CreateCorrectionRequest{
		ContractID: contractID,
		PartnerID:  partnerID,
		PropertyID: propertyID,
		Amount:     req.Amount,
		AddTo:      addTo,
		Note:       strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCorrection(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.correctionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCorrection(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.correctionSvc.Update(c.Request.Context(), id, correctiondomain.UpdateCorrectionRequest{
		Amount: req.Amount,
		Note:   req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelCorrection(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.correctionSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContractCorrections(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var status *correctiondomain.CorrectionStatus
	if raw := strings.TrimSpace(query.Status); raw != "" {
		parsed := correctiondomain.CorrectionStatus(raw)
		if parsed != correctiondomain.CorrectionStatusActive && parsed != correctiondomain.CorrectionStatusCancelled {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		status = &parsed
	}

	resp, err := s.correctionSvc.ListByContract(c.Request.Context(), id, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
