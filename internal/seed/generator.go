// Package seed generates the synthetic e-commerce demo dataset. The data
// carries intentional quality defects (null emails, negative prices,
// duplicate orders, future timestamps, a depressed month) so the quality and
// anomaly tools have something to find out of the box.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	// Defect injection rates, as fractions of the affected table.
	NullEmailRate       float64
	InactiveRate        float64
	NegativePriceRate   float64
	DuplicateOrderRate  float64
	FutureTimestampRate float64

	// AnomalyMonth marks one month whose order quantities are cut to a
	// third. Zero disables the anomaly.
	AnomalyMonth int

	// Entity ratios relative to the order row count.
	CustomerRatio   float64
	ProductRatio    float64
	EventMultiplier int

	PriceMin          float64
	PriceMax          float64
	QuantityMin       int
	QuantityMax       int
	InventoryMax      int
	OrderDateSpanDays int

	Seed int64
}

func DefaultConfig() Config {
	return Config{
		NullEmailRate:       0.08,
		InactiveRate:        0.15,
		NegativePriceRate:   0.03,
		DuplicateOrderRate:  0.015,
		FutureTimestampRate: 0.005,
		AnomalyMonth:        3,
		CustomerRatio:       0.1,
		ProductRatio:        0.02,
		EventMultiplier:     5,
		PriceMin:            5.0,
		PriceMax:            500.0,
		QuantityMin:         1,
		QuantityMax:         10,
		InventoryMax:        1000,
		OrderDateSpanDays:   545,
		Seed:                42,
	}
}

// NoDefects zeroes every injection rate, keeping the entity ratios.
func (c Config) NoDefects() Config {
	c.NullEmailRate = 0
	c.InactiveRate = 0
	c.NegativePriceRate = 0
	c.DuplicateOrderRate = 0
	c.FutureTimestampRate = 0
	c.AnomalyMonth = 0
	return c
}

type Customer struct {
	CustomerID int64   `parquet:"customer_id"`
	Name       string  `parquet:"name"`
	Email      *string `parquet:"email,optional"`
	Region     string  `parquet:"region"`
	SignupDate string  `parquet:"signup_date"`
	IsActive   bool    `parquet:"is_active"`
}

type Product struct {
	ProductID      int64   `parquet:"product_id"`
	Name           string  `parquet:"name"`
	Category       string  `parquet:"category"`
	Price          float64 `parquet:"price"`
	InventoryCount int64   `parquet:"inventory_count"`
}

type Order struct {
	OrderID     int64   `parquet:"order_id"`
	CustomerID  int64   `parquet:"customer_id"`
	ProductID   int64   `parquet:"product_id"`
	OrderDate   string  `parquet:"order_date"`
	Quantity    int64   `parquet:"quantity"`
	UnitPrice   float64 `parquet:"unit_price"`
	TotalAmount float64 `parquet:"total_amount"`
	Status      string  `parquet:"status"`
}

type Event struct {
	EventID    int64  `parquet:"event_id"`
	CustomerID *int64 `parquet:"customer_id,optional"`
	ProductID  *int64 `parquet:"product_id,optional"`
	EventType  string `parquet:"event_type"`
	Page       string `parquet:"page"`
	SessionID  string `parquet:"session_id"`
	Timestamp  string `parquet:"timestamp"`
}

type Dataset struct {
	Customers []Customer
	Products  []Product
	Orders    []Order
	Events    []Event
}

var (
	regions           = []string{"US-West", "US-East", "US-Central", "EU-West", "EU-East", "APAC"}
	productCategories = []string{"Electronics", "Clothing", "Home & Kitchen", "Books", "Sports", "Toys", "Health", "Automotive"}
	orderStatuses     = []string{"completed", "pending", "shipped", "cancelled", "returned"}
	eventTypes        = []string{"page_view", "click", "add_to_cart", "purchase", "search"}
	pages             = []string{"/home", "/product", "/category", "/cart", "/checkout", "/search", "/account"}

	firstNames = []string{"Ada", "Alan", "Grace", "Edsger", "Barbara", "Donald", "Margaret", "Dennis", "Radia", "Ken", "Frances", "Linus", "Hedy", "Tim", "Katherine", "John"}
	lastNames  = []string{"Lovelace", "Turing", "Hopper", "Dijkstra", "Liskov", "Knuth", "Hamilton", "Ritchie", "Perlman", "Thompson", "Allen", "Torvalds", "Lamarr", "Lee", "Johnson", "Backus"}
	domains    = []string{"example.com", "example.org", "mail.test", "shop.test"}

	productAdjectives = []string{"Ergonomic", "Sleek", "Rustic", "Durable", "Compact", "Premium", "Lightweight", "Modular", "Wireless", "Refurbished"}
	productNouns      = []string{"Lamp", "Keyboard", "Chair", "Bottle", "Backpack", "Speaker", "Notebook", "Blender", "Helmet", "Charger"}
)

type Generator struct {
	cfg Config
	rng *rand.Rand
	now time.Time
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		now: time.Now(),
	}
}

// Dataset generates all four tables sized relative to the order count.
func (g *Generator) Dataset(orderRows int) Dataset {
	customers := max(100, int(float64(orderRows)*g.cfg.CustomerRatio))
	products := max(50, int(float64(orderRows)*g.cfg.ProductRatio))
	events := orderRows * g.cfg.EventMultiplier

	return Dataset{
		Customers: g.Customers(customers),
		Products:  g.Products(products),
		Orders:    g.Orders(orderRows, customers, products),
		Events:    g.Events(events, customers, products),
	}
}

func (g *Generator) Customers(n int) []Customer {
	customers := make([]Customer, 0, n)
	for i := 1; i <= n; i++ {
		customer := Customer{
			CustomerID: int64(i),
			Name:       g.fullName(),
			Region:     pick(g.rng, regions),
			SignupDate: g.now.AddDate(-3, 0, g.rng.Intn(3*365)).Format("2006-01-02"),
			IsActive:   g.rng.Float64() > g.cfg.InactiveRate,
		}
		if g.rng.Float64() > g.cfg.NullEmailRate {
			email := g.email(i)
			customer.Email = &email
		}
		customers = append(customers, customer)
	}
	return customers
}

func (g *Generator) Products(n int) []Product {
	products := make([]Product, 0, n)
	for i := 1; i <= n; i++ {
		price := g.price()
		if g.rng.Float64() < g.cfg.NegativePriceRate {
			price = -price
		}
		products = append(products, Product{
			ProductID:      int64(i),
			Name:           pick(g.rng, productAdjectives) + " " + pick(g.rng, productNouns),
			Category:       pick(g.rng, productCategories),
			Price:          price,
			InventoryCount: int64(g.rng.Intn(g.cfg.InventoryMax + 1)),
		})
	}
	return products
}

func (g *Generator) Orders(n, customerCount, productCount int) []Order {
	orders := make([]Order, 0, n)
	baseDate := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= n; i++ {
		orderDate := baseDate.AddDate(0, 0, g.rng.Intn(g.cfg.OrderDateSpanDays+1))
		quantity := g.cfg.QuantityMin + g.rng.Intn(g.cfg.QuantityMax-g.cfg.QuantityMin+1)
		if g.cfg.AnomalyMonth != 0 && int(orderDate.Month()) == g.cfg.AnomalyMonth {
			quantity = max(1, quantity/3)
		}
		unitPrice := g.price()

		orders = append(orders, Order{
			OrderID:     int64(i),
			CustomerID:  int64(1 + g.rng.Intn(customerCount)),
			ProductID:   int64(1 + g.rng.Intn(productCount)),
			OrderDate:   orderDate.Format("2006-01-02 15:04:05"),
			Quantity:    int64(quantity),
			UnitPrice:   unitPrice,
			TotalAmount: round2(float64(quantity) * unitPrice),
			Status:      pick(g.rng, orderStatuses),
		})
	}

	// Duplicated orders reuse another row's values under a fresh order_id.
	if g.cfg.DuplicateOrderRate > 0 {
		duplicates := max(1, int(float64(n)*g.cfg.DuplicateOrderRate))
		for i := 0; i < duplicates; i++ {
			dup := orders[g.rng.Intn(len(orders))]
			dup.OrderID = int64(len(orders) + 1)
			orders = append(orders, dup)
		}
	}
	return orders
}

func (g *Generator) Events(n, customerCount, productCount int) []Event {
	events := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		ts := g.now.Add(-time.Duration(g.rng.Intn(365*24)) * time.Hour)
		if g.rng.Float64() < g.cfg.FutureTimestampRate {
			ts = g.now.AddDate(0, 0, 1+g.rng.Intn(365))
		}

		event := Event{
			EventID:   int64(i),
			EventType: pick(g.rng, eventTypes),
			Page:      pick(g.rng, pages),
			SessionID: uuid.NewString(),
			Timestamp: ts.Format("2006-01-02 15:04:05"),
		}
		if g.rng.Float64() > 0.2 {
			id := int64(1 + g.rng.Intn(customerCount))
			event.CustomerID = &id
		}
		if g.rng.Float64() > 0.4 {
			id := int64(1 + g.rng.Intn(productCount))
			event.ProductID = &id
		}
		events = append(events, event)
	}
	return events
}

func (g *Generator) fullName() string {
	return pick(g.rng, firstNames) + " " + pick(g.rng, lastNames)
}

func (g *Generator) email(id int) string {
	return fmt.Sprintf("user%d@%s", id, pick(g.rng, domains))
}

func (g *Generator) price() float64 {
	return round2(g.cfg.PriceMin + g.rng.Float64()*(g.cfg.PriceMax-g.cfg.PriceMin))
}

func pick[T any](rng *rand.Rand, values []T) T {
	return values[rng.Intn(len(values))]
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
