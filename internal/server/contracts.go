package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
)

type createContractRequest struct {
	PartnerID         string  `json:"partner_id"`
	PropertyID        string  `json:"property_id"`
	AccountID         string  `json:"account_id"`
	TenantIDs         []int64 `json:"tenant_ids"`
	MonthlyPayoutDate *int    `json:"monthly_payout_date,omitempty"`
}

func (s *Server) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partnerID, err := snowflake.ParseString(req.PartnerID)
	if err != nil {
		AbortWithError(c, newValidationError("partner_id", "invalid_id", "invalid id"))
		return
	}
	propertyID, _ := snowflake.ParseString(req.PropertyID)
	accountID, _ := snowflake.ParseString(req.AccountID)

	resp, err := s.contractSvc.Create(c.Request.Context(), contractdomain.CreateContractRequest{
		PartnerID:         partnerID,
		PropertyID:        propertyID,
		AccountID:         accountID,
		TenantIDs:         req.TenantIDs,
		MonthlyPayoutDate: req.MonthlyPayoutDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContract(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contractSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContracts(c *gin.Context) {
	var query struct {
		PartnerID string `form:"partner_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partnerID, err := snowflake.ParseString(query.PartnerID)
	if err != nil {
		AbortWithError(c, newValidationError("partner_id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.contractSvc.ListByPartner(c.Request.Context(), partnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CloseContract(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contractSvc.Close(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSettlementState(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contract, err := s.contractSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	needed, err := s.settlementSvc.IsSettlementNeeded(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"final_settlement_status":  contract.FinalSettlementStatus,
		"is_final_settlement_done": contract.IsFinalSettlementDone,
		"settlement_needed":        needed,
	}})
}

func (s *Server) EvaluateSettlement(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	needed, err := s.settlementSvc.Evaluate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contract, err := s.contractSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"final_settlement_status": contract.FinalSettlementStatus,
		"settlement_needed":       needed,
	}})
}
