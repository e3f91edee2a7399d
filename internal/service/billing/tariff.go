// Package billing turns consumed units into a slab-tariff electricity bill.
package billing

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Slab charges units in [From, To] at Rate. To of zero means unbounded.
type Slab struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
	Rate float64 `yaml:"rate"`
}

// SubsidyStep grants Amount when consumption is at most UpTo.
// UpTo of zero matches everything.
type SubsidyStep struct {
	UpTo   float64 `yaml:"up_to"`
	Amount float64 `yaml:"amount"`
}

// Tariff describes the two slab schedules and the subsidies.
type Tariff struct {
	LowUsageLimit float64       `yaml:"low_usage_limit"`
	LowUsage      []Slab        `yaml:"low_usage"`
	HighUsage     []Slab        `yaml:"high_usage"`
	CCSubsidy     []SubsidyStep `yaml:"cc_subsidy"`
	FixedSubsidy  float64       `yaml:"fixed_subsidy"`
}

// DefaultTariff is the domestic tariff used when no file is configured.
func DefaultTariff() *Tariff {
	return &Tariff{
		LowUsageLimit: 500,
		LowUsage: []Slab{
			{From: 1, To: 100, Rate: 0},
			{From: 101, To: 200, Rate: 2.35},
			{From: 201, To: 400, Rate: 4.70},
			{From: 401, To: 500, Rate: 6.30},
		},
		HighUsage: []Slab{
			{From: 1, To: 100, Rate: 0},
			{From: 101, To: 400, Rate: 4.70},
			{From: 401, To: 500, Rate: 6.30},
			{From: 501, To: 600, Rate: 8.40},
			{From: 601, To: 800, Rate: 9.45},
			{From: 801, To: 1000, Rate: 10.50},
			{From: 1001, To: 0, Rate: 11.55},
		},
		CCSubsidy: []SubsidyStep{
			{UpTo: 300, Amount: 255},
			{UpTo: 500, Amount: 280},
			{UpTo: 700, Amount: 255},
			{UpTo: 0, Amount: 80},
		},
		FixedSubsidy: 480,
	}
}

// LoadTariff reads a YAML tariff. An empty path yields DefaultTariff.
func LoadTariff(path string) (*Tariff, error) {
	if path == "" {
		return DefaultTariff(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tariff file: %w", err)
	}

	var t Tariff
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tariff file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tariff file %s: %w", path, err)
	}
	return &t, nil
}

// Validate checks that both schedules are non-empty and ordered.
func (t *Tariff) Validate() error {
	if t.LowUsageLimit <= 0 {
		return errors.New("low_usage_limit must be positive")
	}
	for name, slabs := range map[string][]Slab{"low_usage": t.LowUsage, "high_usage": t.HighUsage} {
		if len(slabs) == 0 {
			return fmt.Errorf("%s has no slabs", name)
		}
		if !sort.SliceIsSorted(slabs, func(i, j int) bool { return slabs[i].From < slabs[j].From }) {
			return fmt.Errorf("%s slabs are not ordered", name)
		}
		for _, s := range slabs {
			if s.Rate < 0 || (s.To != 0 && s.To < s.From) {
				return fmt.Errorf("%s has a malformed slab %v-%v", name, s.From, s.To)
			}
		}
	}
	return nil
}

// SlabCharge is one line of the bill breakdown.
type SlabCharge struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Rate   float64 `json:"rate"`
	Units  float64 `json:"units"`
	Amount float64 `json:"amount"`
}

// Bill is the computed breakdown for a number of units.
type Bill struct {
	Units         float64      `json:"units"`
	Slabs         []SlabCharge `json:"slabs"`
	EnergyCharges float64      `json:"energy_charges"`
	CCSubsidy     float64      `json:"cc_subsidy"`
	NetCharges    float64      `json:"net_charges"`
	FixedSubsidy  float64      `json:"fixed_subsidy"`
	FinalAmount   float64      `json:"final_amount"`
}

// ErrNegativeUnits is returned for anomalous (negative) consumption.
var ErrNegativeUnits = errors.New("negative consumption cannot be billed")

// Calculate bills the given units against the tariff.
func (t *Tariff) Calculate(units float64) (*Bill, error) {
	if math.IsNaN(units) || math.IsInf(units, 0) {
		return nil, fmt.Errorf("units must be finite, got %v", units)
	}
	if units < 0 {
		return nil, ErrNegativeUnits
	}

	schedule := t.HighUsage
	if units <= t.LowUsageLimit {
		schedule = t.LowUsage
	}

	bill := &Bill{Units: units, FixedSubsidy: t.FixedSubsidy}
	total := 0.0
	for _, s := range schedule {
		lower := s.From - 1
		if units <= lower {
			break
		}
		upper := units
		if s.To != 0 && s.To < upper {
			upper = s.To
		}
		charged := upper - lower
		amount := charged * s.Rate
		total += amount
		bill.Slabs = append(bill.Slabs, SlabCharge{From: s.From, To: s.To, Rate: s.Rate, Units: charged, Amount: amount})
	}

	bill.EnergyCharges = math.Round(total)
	bill.CCSubsidy = t.ccSubsidy(units)
	bill.NetCharges = bill.EnergyCharges - bill.CCSubsidy
	bill.FinalAmount = math.Max(0, bill.NetCharges-bill.FixedSubsidy)
	return bill, nil
}

func (t *Tariff) ccSubsidy(units float64) float64 {
	for _, step := range t.CCSubsidy {
		if step.UpTo == 0 || units <= step.UpTo {
			return step.Amount
		}
	}
	return 0
}
