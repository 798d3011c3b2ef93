package settings

import (
	"context"
	"strings"
	"time"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/tat"
	"example.com/backstage/services/yard/internal/weight"
)

// MasterData lists the values operators may pick from. An empty list accepts anything.
type MasterData struct {
	Depots       []string `json:"depots"`
	Transporters []string `json:"transporters"`
	Suppliers    []string `json:"suppliers"`
}

// Provider supplies configuration values to the journey engine. It is read-only.
type Provider interface {
	MasterData(ctx context.Context) (MasterData, error)
	TATPolicy(ctx context.Context) (tat.Policy, error)
	WeightPolicy(ctx context.Context) (weight.Policy, error)
	Location() *time.Location
}

// Static serves settings loaded once from configuration
type Static struct {
	master   MasterData
	tat      tat.Policy
	weight   weight.Policy
	location *time.Location
}

// NewStatic builds a provider from the yard section of the configuration
func NewStatic(cfg config.YardConfig) (*Static, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, err
	}

	ideal := make(map[string]int, len(cfg.TAT.IdealMinutes))
	for k, v := range cfg.TAT.IdealMinutes {
		ideal[policyKey(k)] = v
	}

	return &Static{
		master: MasterData{
			Depots:       cfg.Depots,
			Transporters: cfg.Transporters,
			Suppliers:    cfg.Suppliers,
		},
		tat: tat.Policy{
			IdealMinutes:             ideal,
			WarningThresholdPercent:  cfg.TAT.WarningThresholdPercent,
			CriticalThresholdPercent: cfg.TAT.CriticalThresholdPercent,
		},
		weight:   weight.Policy{TolerancePercent: cfg.Weight.TolerancePercent},
		location: loc,
	}, nil
}

// policyKey maps configuration keys, which viper lower-cases, onto material types
func policyKey(k string) string {
	if strings.EqualFold(k, tat.DefaultKey) {
		return tat.DefaultKey
	}
	if m, ok := model.ParseMaterialType(k); ok {
		return string(m)
	}
	return k
}

// MasterData implements Provider
func (s *Static) MasterData(context.Context) (MasterData, error) {
	return s.master, nil
}

// TATPolicy implements Provider
func (s *Static) TATPolicy(context.Context) (tat.Policy, error) {
	return s.tat, nil
}

// WeightPolicy implements Provider
func (s *Static) WeightPolicy(context.Context) (weight.Policy, error) {
	return s.weight, nil
}

// Location implements Provider
func (s *Static) Location() *time.Location {
	return s.location
}

// Contains reports whether value is allowed by list, ignoring case
func Contains(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}
