package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	settingsdomain "github.com/smallbiznis/rentledger/internal/settings/domain"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"gorm.io/gorm"
)

type provider struct {
	store repository.Repository[settingsdomain.PartnerSettings]
}

// NewProvider returns the gorm-backed partner settings reader.
func NewProvider(db *gorm.DB) settingsdomain.Provider {
	return &provider{store: repository.ProvideStore[settingsdomain.PartnerSettings](db)}
}

// GetByPartner loads the partner's settings, falling back to defaults when
// the partner never configured any.
func (p *provider) GetByPartner(ctx context.Context, partnerID snowflake.ID) (settingsdomain.PartnerSettings, error) {
	settings, err := p.store.FindOne(ctx, &settingsdomain.PartnerSettings{PartnerID: partnerID})
	if err != nil {
		return settingsdomain.PartnerSettings{}, fmt.Errorf("load partner settings: %w", err)
	}
	if settings == nil {
		return settingsdomain.PartnerSettings{
			PartnerID: partnerID,
			Timezone:  "UTC",
		}, nil
	}
	return *settings, nil
}
