package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// reevaluateSettlement pushes a closed lease forward after a payout event.
// Active leases have nothing to evaluate yet. A failed evaluation does not
// fail the payout response, but it must leave a trace for operations.
func (s *Server) reevaluateSettlement(c *gin.Context, contractID snowflake.ID) {
	contract, err := s.contractSvc.GetByID(c.Request.Context(), contractID)
	if err != nil {
		s.log.Error("load contract for settlement re-evaluation failed",
			zap.String("contract_id", contractID.String()),
			zap.Error(err))
		return
	}
	if !contract.IsClosed() {
		return
	}
	if _, err := s.settlementSvc.Evaluate(c.Request.Context(), contractID); err != nil {
		s.log.Error("settlement re-evaluation failed",
			zap.String("contract_id", contractID.String()),
			zap.Error(err))
	}
}

func (s *Server) GetPayout(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContractPayouts(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.ListByContract(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// MarkPayoutPaid confirms the disbursement settled and immediately balances
// its amount against the contract's open landlord invoices. Settlement
// evaluation is re-run afterwards so a closing lease can make progress.
func (s *Server) MarkPayoutPaid(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.payoutSvc.HandlePaid(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	payout, err := s.payoutSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.reevaluateSettlement(c, payout.ContractID)
	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func (s *Server) MarkPayoutFailed(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.payoutSvc.HandleFailed(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	payout, err := s.payoutSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.reevaluateSettlement(c, payout.ContractID)
	c.JSON(http.StatusOK, gin.H{"data": payout})
}
