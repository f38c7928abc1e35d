package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PayoutConfig tunes payout scheduling and balancing behavior. It is read
// from a mounted payout.yml and hot-reloaded, so operations can adjust the
// disbursement window without a redeploy.
type PayoutConfig struct {
	// DueDays is the number of days between invoice creation and the
	// invoice due date used for payout-date arithmetic.
	DueDays int `mapstructure:"dueDays"`
	// LockTTLSeconds bounds the per-invoice balancing lock.
	LockTTLSeconds int `mapstructure:"lockTtlSeconds"`
	// MaxCarryForwardMonths caps how far back a carried-forward shortfall
	// may originate before it is surfaced for manual review.
	MaxCarryForwardMonths int `mapstructure:"maxCarryForwardMonths"`
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		DueDays:               14,
		LockTTLSeconds:        30,
		MaxCarryForwardMonths: 12,
	}
}

type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

func NewPayoutConfigHolder() (*PayoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("payout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/rentledger/config")
	v.AddConfigPath("/etc/rentledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENTLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPayoutConfig()
		v.SetDefault("payout.dueDays", defaults.DueDays)
		v.SetDefault("payout.lockTtlSeconds", defaults.LockTTLSeconds)
		v.SetDefault("payout.maxCarryForwardMonths", defaults.MaxCarryForwardMonths)
	}

	var cfg PayoutConfig
	if err := v.UnmarshalKey("payout", &cfg); err != nil {
		return nil, err
	}
	if err := validatePayoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutConfig
		if err := v.UnmarshalKey("payout", &updated); err != nil {
			log.Printf("[payout-config] reload failed: %v", err)
			return
		}
		if err := validatePayoutConfig(updated); err != nil {
			log.Printf("[payout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[payout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPayoutConfigHolder returns a holder pinned to the given config.
func NewStaticPayoutConfigHolder(cfg PayoutConfig) *PayoutConfigHolder {
	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PayoutConfigHolder) Get() PayoutConfig {
	return h.current.Load().(PayoutConfig)
}

func validatePayoutConfig(cfg PayoutConfig) error {
	if cfg.DueDays <= 0 {
		return errors.New("payout.dueDays must be positive")
	}
	if cfg.LockTTLSeconds <= 0 {
		return errors.New("payout.lockTtlSeconds must be positive")
	}
	return nil
}
