package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Plan is the quota template applied to a tenant subscribed to it.
type Plan struct {
	Name        string `mapstructure:"name"`
	MaxUsers    int    `mapstructure:"maxUsers"`
	MaxProjects int    `mapstructure:"maxProjects"`
}

type PlanCatalog struct {
	Default string `mapstructure:"default"`
	Plans   []Plan `mapstructure:"plans"`
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		Default: "free",
		Plans: []Plan{
			{Name: "free", MaxUsers: 5, MaxProjects: 3},
			{Name: "pro", MaxUsers: 25, MaxProjects: 50},
			{Name: "enterprise", MaxUsers: 1000, MaxProjects: 1000},
		},
	}
}

// Lookup finds a plan by name.
func (c PlanCatalog) Lookup(name string) (Plan, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, plan := range c.Plans {
		if strings.ToLower(plan.Name) == name {
			return plan, true
		}
	}
	return Plan{}, false
}

// DefaultPlan returns the plan new tenants start on.
func (c PlanCatalog) DefaultPlan() Plan {
	if plan, ok := c.Lookup(c.Default); ok {
		return plan
	}
	plan, _ := DefaultPlanCatalog().Lookup("free")
	return plan
}

type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog
}

// NewPlanCatalogHolder reads plans.yml from the usual config paths and keeps it reloaded on change.
func NewPlanCatalogHolder(log *zap.Logger) (*PlanCatalogHolder, error) {
	return newPlanCatalogHolder(log, "/etc/taskhub", ".")
}

// NewStaticPlanCatalogHolder serves a fixed catalog.
func NewStaticPlanCatalogHolder(catalog PlanCatalog) *PlanCatalogHolder {
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func newPlanCatalogHolder(log *zap.Logger, paths ...string) (*PlanCatalogHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.plans")

	v := viper.New()
	v.SetConfigName("plans")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix("TASKHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read plans config: %w", err)
		}
		fileFound = false
		defaults := DefaultPlanCatalog()
		v.SetDefault("subscription.default", defaults.Default)
		v.SetDefault("subscription.plans", defaults.Plans)
	}

	var catalog PlanCatalog
	if err := v.UnmarshalKey("subscription", &catalog); err != nil {
		return nil, fmt.Errorf("decode plans config: %w", err)
	}
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}

	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PlanCatalog
			if err := v.UnmarshalKey("subscription", &updated); err != nil {
				log.Warn("plans reload failed", zap.Error(err))
				return
			}
			if err := validatePlanCatalog(updated); err != nil {
				log.Warn("invalid plans config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("plans reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	return h.current.Load().(PlanCatalog)
}

func validatePlanCatalog(c PlanCatalog) error {
	if len(c.Plans) == 0 {
		return errors.New("subscription.plans cannot be empty")
	}
	for _, plan := range c.Plans {
		if strings.TrimSpace(plan.Name) == "" {
			return errors.New("subscription plan name is required")
		}
		if plan.MaxUsers < 1 || plan.MaxProjects < 0 {
			return fmt.Errorf("subscription plan %q has invalid limits", plan.Name)
		}
	}
	if _, ok := c.Lookup(c.Default); !ok {
		return fmt.Errorf("default plan %q is not defined", c.Default)
	}
	return nil
}
