package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReconcileConfig tunes the webhook reconciliation path. It is loaded from an
// optional reconcile.yml and hot-reloaded so lock TTLs and gateway timeouts can
// be adjusted without a restart.
type ReconcileConfig struct {
	GatewayTimeoutSeconds int `mapstructure:"gatewayTimeoutSeconds"`
	OrderLockTTLSeconds   int `mapstructure:"orderLockTTLSeconds"`
	OrderLockRetries      int `mapstructure:"orderLockRetries"`
	OrderLockRetryDelayMS int `mapstructure:"orderLockRetryDelayMs"`
	MethodSyncLockSeconds int `mapstructure:"methodSyncLockSeconds"`
	MaxRequestBodyBytes   int `mapstructure:"maxRequestBodyBytes"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		GatewayTimeoutSeconds: 12,
		OrderLockTTLSeconds:   30,
		OrderLockRetries:      20,
		OrderLockRetryDelayMS: 150,
		MethodSyncLockSeconds: 120,
		MaxRequestBodyBytes:   1 << 20,
	}
}

func (c ReconcileConfig) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

func (c ReconcileConfig) OrderLockTTL() time.Duration {
	return time.Duration(c.OrderLockTTLSeconds) * time.Second
}

func (c ReconcileConfig) OrderLockRetryDelay() time.Duration {
	return time.Duration(c.OrderLockRetryDelayMS) * time.Millisecond
}

func (c ReconcileConfig) MethodSyncLockTTL() time.Duration {
	return time.Duration(c.MethodSyncLockSeconds) * time.Second
}

type ReconcileHolder struct {
	current atomic.Value // holds ReconcileConfig
}

// NewReconcileHolderFrom wraps a fixed config, used by tests.
func NewReconcileHolderFrom(cfg ReconcileConfig) *ReconcileHolder {
	holder := &ReconcileHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconcileHolder() (*ReconcileHolder, error) {
	v := viper.New()

	v.SetConfigName("reconcile")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paysync/config")
	v.AddConfigPath("/etc/paysync")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcileConfig()
	v.SetDefault("reconcile.gatewayTimeoutSeconds", defaults.GatewayTimeoutSeconds)
	v.SetDefault("reconcile.orderLockTTLSeconds", defaults.OrderLockTTLSeconds)
	v.SetDefault("reconcile.orderLockRetries", defaults.OrderLockRetries)
	v.SetDefault("reconcile.orderLockRetryDelayMs", defaults.OrderLockRetryDelayMS)
	v.SetDefault("reconcile.methodSyncLockSeconds", defaults.MethodSyncLockSeconds)
	v.SetDefault("reconcile.maxRequestBodyBytes", defaults.MaxRequestBodyBytes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg ReconcileConfig
	if err := v.UnmarshalKey("reconcile", &cfg); err != nil {
		return nil, err
	}
	if err := validateReconcileConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReconcileHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReconcileConfig
		if err := v.UnmarshalKey("reconcile", &updated); err != nil {
			log.Printf("[reconcile-config] reload failed: %v", err)
			return
		}
		if err := validateReconcileConfig(updated); err != nil {
			log.Printf("[reconcile-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[reconcile-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ReconcileHolder) Get() ReconcileConfig {
	return h.current.Load().(ReconcileConfig)
}

func validateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.GatewayTimeoutSeconds <= 0 {
		return errors.New("reconcile.gatewayTimeoutSeconds must be positive")
	}
	if cfg.OrderLockTTLSeconds <= 0 {
		return errors.New("reconcile.orderLockTTLSeconds must be positive")
	}
	if cfg.OrderLockRetries < 0 {
		return errors.New("reconcile.orderLockRetries cannot be negative")
	}
	if cfg.MaxRequestBodyBytes <= 0 {
		return errors.New("reconcile.maxRequestBodyBytes must be positive")
	}
	return nil
}
