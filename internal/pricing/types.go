package pricing

import "gopkg.in/yaml.v3"

// Plan is one purchasable credit bundle. Purchase itself happens at an
// external payment provider.
type Plan struct {
	// Plan identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	Name        string   `yaml:"name" json:"name"`
	Price       string   `yaml:"price" json:"price"`
	Credits     int      `yaml:"credits" json:"credits"`
	Description string   `yaml:"description" json:"description"`
	Features    []string `yaml:"features" json:"features"`
}

// Catalog is the decoded pricing file
type Catalog struct {
	GenerationCosts map[string]int `yaml:"generation_costs" json:"generation_costs"`
	Plans           []Plan         `yaml:"-" json:"plans"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML preserves plan order from the YAML file
func (c *Catalog) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		GenerationCosts map[string]int  `yaml:"generation_costs"`
		Plans           map[string]Plan `yaml:"plans"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	c.GenerationCosts = p.GenerationCosts

	// Mapping node content alternates key, value
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "plans" {
			continue
		}
		plansNode := node.Content[i+1]
		for j := 0; j+1 < len(plansNode.Content); j += 2 {
			id := plansNode.Content[j].Value
			if plan, ok := p.Plans[id]; ok {
				plan.ID = id
				c.Plans = append(c.Plans, plan)
			}
		}
		break
	}

	return nil
}
