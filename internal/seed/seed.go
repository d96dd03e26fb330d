// Package seed loads the bundled state and district list and fills the
// database with sample monthly figures, so the dashboard works before the
// first live sync.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"os"
	"strings"

	"mgnrega/internal/core"
	"mgnrega/internal/log"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var bundled []byte

// SourceURL marks rows produced by the seeder.
const SourceURL = "https://data.gov.in/mgnrega"

// DefaultMonths is how many months of figures are generated per district.
const DefaultMonths = 12

type Dataset struct {
	States []StateSeed `yaml:"states"`
}

type StateSeed struct {
	Code      string         `yaml:"code"`
	Name      string         `yaml:"name"`
	Districts []DistrictSeed `yaml:"districts"`
}

type DistrictSeed struct {
	Name string  `yaml:"name"`
	Code string  `yaml:"code"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Bundled returns the dataset compiled into the binary.
func Bundled() (Dataset, error) {
	return Parse(bundled)
}

// LoadFile reads a dataset from a YAML file.
func LoadFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("failed to parse seed YAML: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, fmt.Errorf("seed validation failed: %w", err)
	}
	return ds, nil
}

func (ds Dataset) Validate() error {
	if len(ds.States) == 0 {
		return fmt.Errorf("no states provided")
	}
	seen := map[string]bool{}
	for _, s := range ds.States {
		if err := (core.State{Name: s.Name, Code: s.Code}).Validate(); err != nil {
			return fmt.Errorf("state %q: %w", s.Code, err)
		}
		code := strings.ToUpper(s.Code)
		if seen[code] {
			return fmt.Errorf("state %s listed twice", code)
		}
		seen[code] = true
		for _, d := range s.Districts {
			if strings.TrimSpace(d.Name) == "" {
				return fmt.Errorf("state %s: district: %w", code, core.ErrEmptyName)
			}
			if err := core.ValidateCoordinates(d.Lat, d.Lon); err != nil {
				return fmt.Errorf("district %s: %w", d.Name, err)
			}
		}
	}
	return nil
}

// Store is the subset of the repository the seeder writes through.
type Store interface {
	UpsertState(ctx context.Context, s core.State) (core.State, error)
	UpsertDistrict(ctx context.Context, d core.District) (core.District, error)
	UpsertMetric(ctx context.Context, m core.MonthlyMetric) (int64, error)
	MarkLatest(ctx context.Context, districtID int64) error
}

// Summary counts what a run wrote.
type Summary struct {
	States    int
	Districts int
	Metrics   int
}

type Seeder struct {
	store  Store
	logger *log.Logger
}

func New(store Store, logger *log.Logger) *Seeder {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Seeder{store: store, logger: logger.WithComponent(log.ComponentSeed)}
}

// Run writes every state and district of ds and generates months of figures
// per district ending at latest, which is then marked latest. Figures are
// derived from the district and period alone, so re-running is idempotent.
func (s *Seeder) Run(ctx context.Context, ds Dataset, latest core.Period, months int) (Summary, error) {
	if err := latest.Validate(); err != nil {
		return Summary{}, err
	}
	if months < 1 {
		months = DefaultMonths
	}

	var sum Summary
	for _, ss := range ds.States {
		state, err := s.store.UpsertState(ctx, core.State{Name: ss.Name, Code: ss.Code})
		if err != nil {
			return sum, fmt.Errorf("seed state %s: %w", ss.Code, err)
		}
		sum.States++

		for _, dd := range ss.Districts {
			district, err := s.store.UpsertDistrict(ctx, core.District{
				Name:     dd.Name,
				Code:     dd.Code,
				StateID:  state.ID,
				Centroid: &core.LatLon{Lat: dd.Lat, Lon: dd.Lon},
			})
			if err != nil {
				return sum, fmt.Errorf("seed district %s: %w", dd.Name, err)
			}
			sum.Districts++

			for i := months - 1; i >= 0; i-- {
				m := Generate(state.Code, district.Code+"/"+district.Name, latest.AddMonths(-i))
				m.DistrictID, m.StateID = district.ID, state.ID
				if _, err := s.store.UpsertMetric(ctx, m); err != nil {
					return sum, fmt.Errorf("seed metrics for %s: %w", dd.Name, err)
				}
				sum.Metrics++
			}
			if err := s.store.MarkLatest(ctx, district.ID); err != nil {
				return sum, fmt.Errorf("mark latest for %s: %w", dd.Name, err)
			}
		}
		s.logger.InfoContext(ctx, "State seeded", log.FieldState, state.Code, "districts", len(ss.Districts))
	}

	s.logger.InfoContext(ctx, "Seeding completed",
		"states", sum.States, "districts", sum.Districts, "metrics", sum.Metrics)
	return sum, nil
}

// Generate returns plausible figures for one district and month. The same
// inputs always give the same figures.
func Generate(stateCode, districtKey string, p core.Period) core.MonthlyMetric {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", stateCode, districtKey, p.Key())
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed>>1|1))

	between := func(lo, hi int64) int64 { return lo + r.Int64N(hi-lo+1) }
	share := func(lo, hi float64) float64 { return lo + r.Float64()*(hi-lo) }
	part := func(total int64, lo, hi float64) int64 { return int64(float64(total) * share(lo, hi)) }

	households := between(5000, 15000)
	personDays := households * between(20, 40)
	funds := float64(personDays * between(250, 350))

	return core.MonthlyMetric{
		Period: p,
		Households: core.Households{
			Total: households,
			SC:    part(households, 0.15, 0.25),
			ST:    part(households, 0.05, 0.15),
			Women: part(households, 0.40, 0.55),
		},
		Works: core.Works{
			Total:      between(30, 80),
			Completed:  between(15, 40),
			InProgress: between(10, 30),
		},
		Finances: core.Finances{
			TotalFunds:          funds,
			FundsUtilized:       core.SumAmounts(funds * share(0.70, 0.95)),
			WageExpenditure:     core.SumAmounts(funds * share(0.55, 0.70)),
			MaterialExpenditure: core.SumAmounts(funds * share(0.15, 0.30)),
		},
		PersonDays: core.PersonDays{
			Total: personDays,
			SC:    part(personDays, 0.15, 0.25),
			ST:    part(personDays, 0.05, 0.15),
			Women: part(personDays, 0.40, 0.55),
		},
		SourceURL: SourceURL,
	}
}
