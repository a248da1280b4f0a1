// Package seed generates deterministic demo data for local development:
// a product catalog with cost/margin structure, a customer roster joined
// over the past two years, and a sales history with weekday and seasonal
// shape so the analytics pipeline has something to find.
package seed

import (
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Generation defaults, matching the scale of the demo dataset the
// dashboard was designed around.
const (
	DefaultProducts  = 100
	DefaultCustomers = 500
	DefaultSales     = 10000
	DefaultDays      = 730
)

var categories = []string{
	"Electronics", "Clothing", "Books", "Home & Garden",
	"Sports", "Toys", "Food & Beverages", "Health",
}

var productWords = []string{
	"Aurora", "Basalt", "Cedar", "Delta", "Ember", "Falcon", "Granite",
	"Harbor", "Indigo", "Juniper", "Kestrel", "Lumen", "Meridian",
	"Nimbus", "Onyx", "Pioneer", "Quartz", "Ridge", "Summit", "Tundra",
}

var productTiers = []string{"Pro", "Deluxe", "Basic", "Premium"}

// Config controls dataset generation. The zero value selects the
// defaults with an end bound of today's UTC midnight.
type Config struct {
	Products  int
	Customers int
	Sales     int
	Days      int       // length of the sales window
	End       time.Time // exclusive upper bound of sale timestamps
	Seed      int64
}

func (c Config) normalized() Config {
	if c.Products < 1 {
		c.Products = DefaultProducts
	}
	if c.Customers < 1 {
		c.Customers = DefaultCustomers
	}
	if c.Sales < 1 {
		c.Sales = DefaultSales
	}
	if c.Days < 1 {
		c.Days = DefaultDays
	}
	if c.End.IsZero() {
		now := time.Now().UTC()
		c.End = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	c.End = c.End.UTC()
	return c
}

// Product is one catalog row to be inserted. ListPrice is not a table
// column; it anchors the unit prices of the generated sales.
type Product struct {
	Name      string
	Category  string
	UnitCost  decimal.Decimal
	ListPrice decimal.Decimal
}

// Customer is one roster row to be inserted.
type Customer struct {
	JoinedAt time.Time
}

// Sale is one transaction row to be inserted. CustomerID and ProductID
// are 1-based positions in the generated slices, which match the serial
// ids a freshly provisioned database assigns.
type Sale struct {
	CustomerID int64
	ProductID  int64
	OccurredAt time.Time
	Quantity   int64
	UnitPrice  decimal.Decimal
}

// Dataset is one generated demo dataset.
type Dataset struct {
	Products  []Product
	Customers []Customer
	Sales     []Sale
}

// Generate builds a dataset from cfg. Generation is pure: the same
// config (including End and Seed) yields the same dataset.
func Generate(cfg Config) Dataset {
	cfg = cfg.normalized()
	r := rand.New(rand.NewSource(cfg.Seed))

	ds := Dataset{
		Products:  make([]Product, 0, cfg.Products),
		Customers: make([]Customer, 0, cfg.Customers),
		Sales:     make([]Sale, 0, cfg.Sales),
	}

	for i := 0; i < cfg.Products; i++ {
		// Unit cost 5–500 with a 20–100% margin on the list price.
		cost := 5 + r.Float64()*495
		margin := 0.2 + r.Float64()*0.8
		price := cost * (1 + margin)

		ds.Products = append(ds.Products, Product{
			Name:      productWords[r.Intn(len(productWords))] + " " + productTiers[r.Intn(len(productTiers))],
			Category:  categories[r.Intn(len(categories))],
			UnitCost:  decimal.NewFromFloat(cost).Round(2),
			ListPrice: decimal.NewFromFloat(price).Round(2),
		})
	}

	// Customers joined over the two years before the window end.
	for i := 0; i < cfg.Customers; i++ {
		daysAgo := r.Intn(DefaultDays + 1)
		ds.Customers = append(ds.Customers, Customer{
			JoinedAt: cfg.End.AddDate(0, 0, -daysAgo),
		})
	}

	dayWeights := cumulative(dailyIntensity(cfg.End, cfg.Days))
	customerWeights := cumulative(spendPropensity(r, cfg.Customers))

	for i := 0; i < cfg.Sales; i++ {
		day := pick(r, dayWeights)
		productIdx := r.Intn(cfg.Products)

		// ±10% price jitter around the list price.
		jitter := 0.9 + 0.2*r.Float64()
		price := ds.Products[productIdx].ListPrice.Mul(decimal.NewFromFloat(jitter)).Round(2)

		ds.Sales = append(ds.Sales, Sale{
			CustomerID: int64(pick(r, customerWeights)) + 1,
			ProductID:  int64(productIdx) + 1,
			OccurredAt: cfg.End.AddDate(0, 0, day-cfg.Days).Add(time.Duration(r.Intn(24*60)) * time.Minute),
			Quantity:   int64(r.Intn(10)) + 1,
			UnitPrice:  price,
		})
	}

	// The record store serves rows ordered by id; inserting in time
	// order keeps ids and timestamps roughly aligned like real data.
	sort.SliceStable(ds.Sales, func(i, j int) bool {
		return ds.Sales[i].OccurredAt.Before(ds.Sales[j].OccurredAt)
	})

	return ds
}

// dailyIntensity returns one relative sales weight per day of the
// window: a gentle upward trend with weekend and holiday-season lift,
// so aggregates show growth and forecasts have seasonality to learn.
func dailyIntensity(end time.Time, days int) []float64 {
	weights := make([]float64, days)
	for d := 0; d < days; d++ {
		date := end.AddDate(0, 0, d-days)

		w := 0.8 + 0.4*float64(d)/float64(days)

		switch date.Weekday() {
		case time.Saturday:
			w *= 1.5
		case time.Sunday:
			w *= 1.3
		case time.Friday:
			w *= 1.2
		}

		switch date.Month() {
		case time.November:
			w *= 1.3
		case time.December:
			w *= 1.6
		case time.July:
			w *= 0.9
		}

		weights[d] = w
	}
	return weights
}

// spendPropensity draws one relative purchase weight per customer.
// The exponential skew creates the distinct high-value and long-tail
// populations segmentation is supposed to separate.
func spendPropensity(r *rand.Rand, customers int) []float64 {
	weights := make([]float64, customers)
	for i := range weights {
		weights[i] = 0.2 + r.ExpFloat64()
	}
	return weights
}

func cumulative(weights []float64) []float64 {
	sums := make([]float64, len(weights))
	var total float64
	for i, w := range weights {
		total += w
		sums[i] = total
	}
	return sums
}

// pick samples an index proportionally to its weight.
func pick(r *rand.Rand, sums []float64) int {
	u := r.Float64() * sums[len(sums)-1]
	i := sort.SearchFloat64s(sums, u)
	if i >= len(sums) {
		i = len(sums) - 1
	}
	return i
}
