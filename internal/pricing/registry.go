package pricing

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
	"webforge/internal/domain"
)

//go:embed config/pricing.yaml
var configFiles embed.FS

// Registry serves the embedded pricing catalog. It is read-only after load.
type Registry struct {
	catalog  Catalog
	override int
}

// NewRegistry loads the embedded catalog. A positive costOverride replaces
// every per-provider generation cost.
func NewRegistry(costOverride int) (*Registry, error) {
	data, err := configFiles.ReadFile("config/pricing.yaml")
	if err != nil {
		return nil, fmt.Errorf("read pricing catalog: %w", err)
	}
	return parse(data, costOverride)
}

func parse(data []byte, costOverride int) (*Registry, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal pricing catalog: %w", err)
	}
	if _, ok := catalog.GenerationCosts["default"]; !ok {
		return nil, fmt.Errorf("pricing catalog has no default generation cost")
	}
	for provider, cost := range catalog.GenerationCosts {
		if cost < 0 {
			return nil, fmt.Errorf("negative generation cost for %s", provider)
		}
	}
	return &Registry{catalog: catalog, override: costOverride}, nil
}

// GenerationCost returns the credits charged per generation for a provider
func (r *Registry) GenerationCost(provider string) int {
	if r.override > 0 {
		return r.override
	}
	if cost, ok := r.catalog.GenerationCosts[provider]; ok {
		return cost
	}
	return r.catalog.GenerationCosts["default"]
}

// Plans returns all plans in catalog order
func (r *Registry) Plans() []Plan {
	return append([]Plan(nil), r.catalog.Plans...)
}

// Plan returns one plan by ID
func (r *Registry) Plan(id string) (*Plan, error) {
	for i := range r.catalog.Plans {
		if r.catalog.Plans[i].ID == id {
			plan := r.catalog.Plans[i]
			return &plan, nil
		}
	}
	return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
}
