package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	"github.com/smallbiznis/rentledger/pkg/db/option"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	correctionrepo repository.Repository[correctiondomain.Correction]
	contractrepo   repository.Repository[contractdomain.Contract]
}

func NewService(p ServiceParam) correctiondomain.Service {
	return &Service{
		log:   p.Log.Named("correction.service"),
		genID: p.GenID,
		clock: p.Clock,

		correctionrepo: repository.ProvideStore[correctiondomain.Correction](p.DB),
		contractrepo:   repository.ProvideStore[contractdomain.Contract](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req correctiondomain.CreateCorrectionRequest) (correctiondomain.Correction, error) {
	contract, err := s.contractrepo.FindOne(ctx, &contractdomain.Contract{ID: req.ContractID})
	if err != nil {
		return correctiondomain.Correction{}, fmt.Errorf("load contract: %w", err)
	}
	if contract == nil {
		return correctiondomain.Correction{}, fmt.Errorf("contract %s not found", req.ContractID)
	}
	if contract.IsFinalSettlementDone {
		return correctiondomain.Correction{}, correctiondomain.ErrSettlementDone
	}
	if money.IsZero(req.Amount) {
		return correctiondomain.Correction{}, fmt.Errorf("correction amount must be nonzero")
	}

	correction := correctiondomain.Correction{
		ID:         s.genID.Generate(),
		ContractID: req.ContractID,
		PartnerID:  req.PartnerID,
		PropertyID: req.PropertyID,
		Amount:     money.Round2(req.Amount),
		Status:     correctiondomain.CorrectionStatusActive,
		AddTo:      req.AddTo,
		Note:       req.Note,
		CreatedAt:  s.clock.Now(),
		UpdatedAt:  s.clock.Now(),
	}
	if err := s.correctionrepo.Create(ctx, &correction); err != nil {
		return correctiondomain.Correction{}, fmt.Errorf("persist correction: %w", err)
	}

	s.log.Info("correction created",
		zap.String("correction_id", correction.ID.String()),
		zap.String("contract_id", correction.ContractID.String()),
		zap.Float64("amount", correction.Amount))
	return correction, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req correctiondomain.UpdateCorrectionRequest) (correctiondomain.Correction, error) {
	correction, err := s.editable(ctx, id)
	if err != nil {
		return correctiondomain.Correction{}, err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if req.Amount != nil {
		if money.IsZero(*req.Amount) {
			return correctiondomain.Correction{}, fmt.Errorf("correction amount must be nonzero")
		}
		updates["amount"] = money.Round2(*req.Amount)
	}
	if req.Note != nil {
		updates["note"] = *req.Note
	}
	if err := s.correctionrepo.Update(ctx, id.String(), updates); err != nil {
		return correctiondomain.Correction{}, fmt.Errorf("update correction: %w", err)
	}
	return s.GetByID(ctx, correction.ID)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (correctiondomain.Correction, error) {
	if _, err := s.editable(ctx, id); err != nil {
		return correctiondomain.Correction{}, err
	}
	if err := s.correctionrepo.Update(ctx, id.String(), map[string]any{
		"status":     correctiondomain.CorrectionStatusCancelled,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return correctiondomain.Correction{}, fmt.Errorf("cancel correction: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (correctiondomain.Correction, error) {
	correction, err := s.correctionrepo.FindOne(ctx, &correctiondomain.Correction{ID: id})
	if err != nil {
		return correctiondomain.Correction{}, err
	}
	if correction == nil {
		return correctiondomain.Correction{}, gorm.ErrRecordNotFound
	}
	return *correction, nil
}

func (s *Service) ListByContract(ctx context.Context, contractID snowflake.ID, status *correctiondomain.CorrectionStatus) ([]correctiondomain.Correction, error) {
	query := &correctiondomain.Correction{ContractID: contractID}
	if status != nil {
		query.Status = *status
	}
	items, err := s.correctionrepo.Find(ctx, query, option.WithSortBy(option.QuerySortBy{Default: "created_at"}))
	if err != nil {
		return nil, err
	}
	corrections := make([]correctiondomain.Correction, 0, len(items))
	for _, item := range items {
		corrections = append(corrections, *item)
	}
	return corrections, nil
}

func (s *Service) MarkConsumed(ctx context.Context, id snowflake.ID, invoiceID, payoutID *snowflake.ID) error {
	correction, err := s.editable(ctx, id)
	if err != nil {
		return err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if invoiceID != nil {
		updates["invoice_id"] = *invoiceID
	}
	if payoutID != nil {
		updates["payout_id"] = *payoutID
	}
	if err := s.correctionrepo.Update(ctx, id.String(), updates); err != nil {
		return fmt.Errorf("mark correction consumed: %w", err)
	}

	s.log.Info("correction consumed",
		zap.String("correction_id", correction.ID.String()))
	return nil
}

// editable loads the correction and enforces the edit guards shared by
// Update, Cancel, and MarkConsumed.
func (s *Service) editable(ctx context.Context, id snowflake.ID) (*correctiondomain.Correction, error) {
	correction, err := s.correctionrepo.FindOne(ctx, &correctiondomain.Correction{ID: id})
	if err != nil {
		return nil, err
	}
	if correction == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if correction.IsConsumed() {
		return nil, correctiondomain.ErrCorrectionConsumed
	}
	if correction.Status == correctiondomain.CorrectionStatusCancelled {
		return nil, correctiondomain.ErrCorrectionCancelled
	}
	return correction, nil
}
