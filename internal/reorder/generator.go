package reorder

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weather-reorder/internal/catalog"
	"github.com/i474232898/weather-reorder/internal/common"
	"github.com/i474232898/weather-reorder/internal/config"
	"github.com/i474232898/weather-reorder/internal/demand"
	"github.com/i474232898/weather-reorder/internal/metrics"
)

const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"

	// Multipliers above this threshold make a suggestion high priority.
	highPriorityMultiplier = 1.3

	maxCandidatesPerForecast = 5
	defaultFallbackProducts  = 3
)

// ErrNoCategoryMatch is returned under the error policy when a forecast finds
// no products for its category.
var ErrNoCategoryMatch = errors.New("no catalog products match forecast category")

// Name substrings that identify beer when no product carries the beer
// category.
var beerKeywords = []string{"beer", "budweiser", "stella", "heineken"}

// DefaultCategoryIDs maps forecast categories to catalog category ids.
var DefaultCategoryIDs = map[string]int{
	demand.CategoryBeer:    1,
	demand.CategoryWine:    2,
	demand.CategorySpirits: 3,
}

// Suggestion is one recommended order for one product under one forecast.
type Suggestion struct {
	ProductID               int    `json:"productId"`
	ProductName             string `json:"productName"`
	CurrentStock            int    `json:"currentStock"`
	NormalParLevel          int    `json:"normalParLevel"`
	WeatherAdjustedParLevel int    `json:"weatherAdjustedParLevel"`
	SuggestedOrderQuantity  int    `json:"suggestedOrderQuantity"`
	Reasoning               string `json:"reasoning"`
	Priority                string `json:"priority"`
}

// Generator turns demand forecasts and a catalog into ranked suggestions.
type Generator struct {
	categoryIDs  map[string]int
	policy       string
	fallbackSize int
	metrics      *metrics.Metrics

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Generator)

// WithRand sets the source used for unknown stock and par levels.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// WithEmptyMatchPolicy selects what happens when a forecast matches no
// products: config.PolicyTopN falls back to the first n catalog products,
// config.PolicySkip emits nothing and config.PolicyError fails.
func WithEmptyMatchPolicy(policy string, n int) Option {
	return func(g *Generator) {
		g.policy = policy
		if n > 0 {
			g.fallbackSize = n
		}
	}
}

func WithCategoryIDs(ids map[string]int) Option {
	return func(g *Generator) {
		g.categoryIDs = make(map[string]int, len(ids))
		for k, v := range ids {
			g.categoryIDs[k] = v
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		categoryIDs:  DefaultCategoryIDs,
		policy:       config.PolicyTopN,
		fallbackSize: defaultFallbackProducts,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate evaluates every forecast against the catalog and returns all
// suggestions sorted by suggested quantity, largest first. An empty catalog
// yields no suggestions and no error.
func (g *Generator) Generate(forecasts []demand.Forecast, products []catalog.Product) ([]Suggestion, error) {
	var out []Suggestion
	if len(products) == 0 {
		return out, nil
	}

	for _, f := range forecasts {
		candidates := g.candidates(f, products)
		if len(candidates) == 0 {
			switch g.policy {
			case config.PolicyError:
				return nil, fmt.Errorf("%w: %s", ErrNoCategoryMatch, f.ProductCategory)
			case config.PolicySkip:
				continue
			default:
				candidates = products[:min(g.fallbackSize, len(products))]
			}
		}
		if len(candidates) > maxCandidatesPerForecast {
			candidates = candidates[:maxCandidatesPerForecast]
		}

		for _, p := range candidates {
			stock, par := g.levels(p)
			adjusted := int(math.Round(float64(par) * f.DemandMultiplier))
			if stock >= adjusted {
				continue
			}

			priority := PriorityMedium
			if f.DemandMultiplier > highPriorityMultiplier {
				priority = PriorityHigh
			}

			out = append(out, Suggestion{
				ProductID:               p.ID,
				ProductName:             p.Name,
				CurrentStock:            stock,
				NormalParLevel:          par,
				WeatherAdjustedParLevel: adjusted,
				SuggestedOrderQuantity:  adjusted - stock,
				Reasoning:               f.Reasoning,
				Priority:                priority,
			})
		}
	}

	for _, sg := range out {
		g.metrics.RecordSuggestion(sg.Priority)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SuggestedOrderQuantity > out[j].SuggestedOrderQuantity
	})
	return out, nil
}

// candidates selects the products a forecast applies to, before fallback.
func (g *Generator) candidates(f demand.Forecast, products []catalog.Product) []catalog.Product {
	if f.ProductCategory == demand.CategoryAll {
		return products
	}

	var out []catalog.Product
	if id, ok := g.categoryIDs[f.ProductCategory]; ok {
		for _, p := range products {
			if p.CategoryID != nil && *p.CategoryID == id {
				out = append(out, p)
			}
		}
	}

	if len(out) == 0 && f.ProductCategory == demand.CategoryBeer {
		for _, p := range products {
			if common.HasAny(strings.ToLower(p.Name), beerKeywords...) {
				out = append(out, p)
			}
		}
	}
	return out
}

// levels returns stock and par for p, drawing plausible values for the
// unknown ones: stock in [15, 40), par in [30, 70).
func (g *Generator) levels(p catalog.Product) (stock, par int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p.LastCountQuantity != nil {
		stock = *p.LastCountQuantity
	} else {
		stock = 15 + g.rng.Intn(25)
	}
	if p.ParLevel != nil {
		par = *p.ParLevel
	} else {
		par = 30 + g.rng.Intn(40)
	}
	return stock, par
}
