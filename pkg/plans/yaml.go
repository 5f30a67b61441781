package plans

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plankit/plankit/pkg/subscription"
)

// planFile is the on-disk catalog schema:
//
//	plans:
//	  - slug: basic
//	    name: Basic
//	    active: true
//	    popular: true
//	    trial_days: 14
//	    grace_days: 7
//	    limits:
//	      products: 100
//	      storage: -1
//	    modules: [auto_invoice]
//	    periods:
//	      - months: 1
//	        price: 99000
//	      - months: 12
//	        price: 1188000
//	        discount: 25
type planFile struct {
	Plans []planYAML `yaml:"plans"`
}

type planYAML struct {
	Slug        string                        `yaml:"slug"`
	Name        string                        `yaml:"name"`
	Description string                        `yaml:"description"`
	Limits      map[subscription.Metric]int64 `yaml:"limits"`
	Modules     []subscription.Module         `yaml:"modules"`
	Periods     []periodYAML                  `yaml:"periods"`
	TrialDays   int                           `yaml:"trial_days"`
	GraceDays   int                           `yaml:"grace_days"`
	Popular     bool                          `yaml:"popular"`
	Active      bool                          `yaml:"active"`
}

type periodYAML struct {
	Months   int     `yaml:"months"`
	Price    float64 `yaml:"price"`
	Discount float64 `yaml:"discount"`
}

// ParseYAML decodes a plan catalog from YAML. Definitions are only decoded,
// not validated; NewStatic applies the validation rules.
func ParseYAML(r io.Reader) ([]subscription.Plan, error) {
	var file planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Join(ErrFailedToParseFile, err)
	}

	defs := make([]subscription.Plan, 0, len(file.Plans))
	for _, raw := range file.Plans {
		plan := subscription.Plan{
			Slug:        raw.Slug,
			Name:        raw.Name,
			Description: raw.Description,
			Limits:      raw.Limits,
			Modules:     raw.Modules,
			TrialDays:   raw.TrialDays,
			GraceDays:   raw.GraceDays,
			Popular:     raw.Popular,
			Active:      raw.Active,
		}
		if len(raw.Periods) > 0 {
			plan.Periods = make(map[int]subscription.PlanPeriod, len(raw.Periods))
			for _, period := range raw.Periods {
				if _, exists := plan.Periods[period.Months]; exists {
					return nil, errors.Join(ErrDuplicatePeriod, fmt.Errorf("plan %q period %d", raw.Slug, period.Months))
				}
				plan.Periods[period.Months] = subscription.PlanPeriod{
					Price:    period.Price,
					Discount: period.Discount,
				}
			}
		}
		defs = append(defs, plan)
	}
	return defs, nil
}

// LoadFile reads and decodes a plan catalog from a YAML file.
func LoadFile(path string) ([]subscription.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadFile, err)
	}
	defer f.Close()
	return ParseYAML(f)
}

// NewFromFile builds a validated static catalog straight from a YAML file.
func NewFromFile(path string) (*Static, error) {
	defs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(defs...)
}
