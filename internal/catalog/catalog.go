// Package catalog reads and writes plan listings as YAML.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fentz26/planboard/internal/models"
	"gopkg.in/yaml.v3"
)

// Catalog is a set of plan listings kept in a YAML file.
type Catalog struct {
	Plans []models.NewPlan `yaml:"plans"`
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// Save writes a catalog file, creating parent directories if needed.
func Save(path string, c *Catalog) error {
	if c == nil {
		return fmt.Errorf("catalog cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	return nil
}

// FromPlans converts stored plan records back into catalog entries.
// Milestone IDs and reach stamps are dropped.
func FromPlans(plans []models.Task) *Catalog {
	c := &Catalog{Plans: make([]models.NewPlan, 0, len(plans))}
	for _, p := range plans {
		ms := models.CloneMilestones(p.Milestones)
		for i := range ms {
			ms[i].ID = ""
			ms[i].ReachedAt = nil
		}
		c.Plans = append(c.Plans, models.NewPlan{
			Title:          p.Title,
			Description:    p.Description,
			ProgressMode:   p.ProgressMode,
			ProgressTarget: p.ProgressTarget,
			Milestones:     ms,
			Quantity:       p.Quantity,
			CreditCost:     p.CreditCost,
			OfferPrice:     p.OfferPrice,
			OriginalPrice:  p.OriginalPrice,
		})
	}
	return c
}

// Validate checks titles, modes and milestone names.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Plans))
	for i := range c.Plans {
		p := &c.Plans[i]
		title := strings.TrimSpace(p.Title)
		if title == "" {
			return fmt.Errorf("plan %d: title is required", i+1)
		}
		if seen[strings.ToLower(title)] {
			return fmt.Errorf("plan %q is listed twice", title)
		}
		seen[strings.ToLower(title)] = true

		mode, err := models.ParseProgressMode(string(p.ProgressMode))
		if err != nil {
			return fmt.Errorf("plan %q: %w", title, err)
		}
		p.ProgressMode = mode

		for _, m := range p.Milestones {
			if strings.TrimSpace(m.Name) == "" {
				return fmt.Errorf("plan %q: milestone name is required", title)
			}
			if m.Percentage < 0 {
				return fmt.Errorf("plan %q: milestone %q has a negative percentage", title, m.Name)
			}
		}
	}
	return nil
}
