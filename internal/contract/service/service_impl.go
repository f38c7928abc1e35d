package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	"github.com/smallbiznis/rentledger/internal/settlement"
	"github.com/smallbiznis/rentledger/pkg/db/option"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Settlement *settlement.Service
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	settlement *settlement.Service

	contractrepo repository.Repository[contractdomain.Contract]
}

func NewService(p ServiceParam) contractdomain.Service {
	return &Service{
		log:        p.Log.Named("contract.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		settlement: p.Settlement,

		contractrepo: repository.ProvideStore[contractdomain.Contract](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req contractdomain.CreateContractRequest) (contractdomain.Contract, error) {
	if req.MonthlyPayoutDate != nil && (*req.MonthlyPayoutDate < 1 || *req.MonthlyPayoutDate > 28) {
		return contractdomain.Contract{}, fmt.Errorf("monthly payout date must fall on every month")
	}

	contract := contractdomain.Contract{
		ID:                    s.genID.Generate(),
		PartnerID:             req.PartnerID,
		PropertyID:            req.PropertyID,
		AccountID:             req.AccountID,
		TenantIDs:             req.TenantIDs,
		Status:                contractdomain.ContractStatusActive,
		FinalSettlementStatus: contractdomain.SettlementStatusNone,
		MonthlyPayoutDate:     req.MonthlyPayoutDate,
		CreatedAt:             s.clock.Now(),
		UpdatedAt:             s.clock.Now(),
	}
	if err := s.contractrepo.Create(ctx, &contract); err != nil {
		return contractdomain.Contract{}, fmt.Errorf("persist contract: %w", err)
	}

	s.log.Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("partner_id", contract.PartnerID.String()))
	return contract, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (contractdomain.Contract, error) {
	contract, err := s.contractrepo.FindOne(ctx, &contractdomain.Contract{ID: id})
	if err != nil {
		return contractdomain.Contract{}, err
	}
	if contract == nil {
		return contractdomain.Contract{}, gorm.ErrRecordNotFound
	}
	return *contract, nil
}

func (s *Service) ListByPartner(ctx context.Context, partnerID snowflake.ID) ([]contractdomain.Contract, error) {
	items, err := s.contractrepo.Find(ctx, &contractdomain.Contract{PartnerID: partnerID},
		option.WithSortBy(option.QuerySortBy{Default: "created_at"}))
	if err != nil {
		return nil, err
	}
	contracts := make([]contractdomain.Contract, 0, len(items))
	for _, item := range items {
		contracts = append(contracts, *item)
	}
	return contracts, nil
}

// Close terminates the lease and immediately runs the first settlement
// evaluation, which either completes the settlement outright or moves it
// into in_progress with its closing payout and follow-up work queued.
func (s *Service) Close(ctx context.Context, id snowflake.ID) (contractdomain.Contract, error) {
	contract, err := s.GetByID(ctx, id)
	if err != nil {
		return contractdomain.Contract{}, err
	}
	if contract.IsClosed() {
		return contractdomain.Contract{}, fmt.Errorf("contract %s is already closed", id)
	}

	if err := s.contractrepo.Update(ctx, id.String(), map[string]any{
		"status":     contractdomain.ContractStatusClosed,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return contractdomain.Contract{}, fmt.Errorf("close contract: %w", err)
	}

	if _, err := s.settlement.Evaluate(ctx, id); err != nil {
		return contractdomain.Contract{}, fmt.Errorf("evaluate settlement: %w", err)
	}
	return s.GetByID(ctx, id)
}
