// Package refdata supplies the read-only reference snapshot (orders,
// vehicles, weather, traffic) that conversational handlers ground their
// answers in. Snapshots are generated from a seedable source and persisted
// as JSON so a data directory can be inspected or regenerated at will.
package refdata

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

type DeliveryWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PackageDetails struct {
	WeightKg   float64 `json:"weight_kg"`
	Dimensions string  `json:"dimensions"`
	Fragile    bool    `json:"fragile"`
}

type Order struct {
	OrderID        string         `json:"order_id"`
	CustomerName   string         `json:"customer_name"`
	Address        string         `json:"address"`
	DeliveryWindow DeliveryWindow `json:"delivery_window"`
	PackageDetails PackageDetails `json:"package_details"`
	Priority       string         `json:"priority"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type Maintenance struct {
	LastService    string   `json:"last_service"`
	NextServiceDue string   `json:"next_service_due"`
	Issues         []string `json:"issues"`
}

type Capacity struct {
	WeightKg int `json:"weight_kg"`
	VolumeM3 int `json:"volume_m3"`
}

type Vehicle struct {
	VehicleID       string      `json:"vehicle_id"`
	Type            string      `json:"type"`
	DriverName      string      `json:"driver_name"`
	CurrentLocation Location    `json:"current_location"`
	Status          string      `json:"status"`
	FuelLevel       int         `json:"fuel_level"`
	Maintenance     Maintenance `json:"maintenance"`
	Capacity        Capacity    `json:"capacity"`
}

type ForecastEntry struct {
	Time         string `json:"time"`
	Condition    string `json:"condition"`
	TemperatureC int    `json:"temperature_c"`
}

type CityWeather struct {
	Condition       string          `json:"condition"`
	TemperatureC    int             `json:"temperature_c"`
	WindSpeedKmh    int             `json:"wind_speed_kmh"`
	PrecipitationMm float64         `json:"precipitation_mm"`
	Forecast        []ForecastEntry `json:"forecast"`
}

type Incident struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Impact   string `json:"impact"`
}

type RoadTraffic struct {
	CongestionLevel       int        `json:"congestion_level"`
	AverageSpeedKmh       int        `json:"average_speed_kmh"`
	Incidents             []Incident `json:"incidents"`
	EstimatedDelayMinutes int        `json:"estimated_delay_minutes"`
}

// Snapshot is the full reference dataset handed to a session at creation.
type Snapshot struct {
	Orders   []Order                `json:"orders"`
	Vehicles []Vehicle              `json:"vehicles"`
	Weather  map[string]CityWeather `json:"weather"`
	Traffic  map[string]RoadTraffic `json:"traffic"`
}

const snapshotFile = "refdata.json"

// Provider loads or generates snapshots. Zero value generates in memory
// with a time-based seed and never touches disk.
type Provider struct {
	Dir  string
	Seed int64
	now  func() time.Time
}

func NewProvider(dir string) *Provider {
	return &Provider{Dir: dir, now: time.Now}
}

// Load returns the persisted snapshot when present and readable, otherwise
// generates a fresh one (persisting it when a directory is configured).
func (p *Provider) Load() Snapshot {
	nowFn := p.now
	if nowFn == nil {
		nowFn = time.Now
	}

	if p.Dir != "" {
		path := filepath.Join(p.Dir, snapshotFile)
		if raw, err := os.ReadFile(path); err == nil {
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return snap
			}
			log.Warn().Str("path", path).Msg("unreadable reference snapshot, regenerating")
		}
	}

	seed := p.Seed
	if seed == 0 {
		seed = nowFn().UnixNano()
	}
	snap := Generate(rand.New(rand.NewSource(seed)), nowFn())

	if p.Dir != "" {
		if err := p.persist(snap); err != nil {
			log.Warn().Err(err).Msg("failed to persist reference snapshot")
		}
	}
	return snap
}

func (p *Provider) persist(snap Snapshot) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(p.Dir, snapshotFile), raw, 0o644)
}

var (
	addresses = []string{
		"123 Main St, Springfield, IL",
		"456 Elm Ave, Riverdale, NY",
		"789 Oak Dr, Lakeside, CA",
		"321 Pine Rd, Mountainview, CO",
		"654 Maple Ln, Oceanside, FL",
		"987 Cedar Ct, Hillside, TX",
		"741 Birch Way, Valleytown, PA",
		"852 Spruce Blvd, Desertville, AZ",
		"963 Walnut St, Forestcity, OR",
		"159 Cherry Ave, Plainsville, OH",
	}
	cities            = []string{"Springfield", "Riverdale", "Lakeside", "Mountainview", "Oceanside"}
	roads             = []string{"Main Highway", "Route 66", "Interstate 95", "Central Expressway", "Coastal Road"}
	weatherConditions = []string{"Sunny", "Cloudy", "Rainy", "Stormy", "Foggy", "Partly Cloudy", "Clear"}
	vehicleTypes      = []string{"van", "truck", "delivery car"}
	vehicleStatuses   = []string{"active", "loading", "maintenance", "returning"}
	orderPriorities   = []string{"standard", "express", "priority"}
	incidentTypes     = []string{"accident", "construction", "road closure"}
	incidentImpacts   = []string{"minor", "moderate", "severe"}
)

// Generate builds a snapshot from rng. Deterministic for a fixed seed and
// reference time.
func Generate(rng *rand.Rand, now time.Time) Snapshot {
	snap := Snapshot{
		Weather: make(map[string]CityWeather, len(cities)),
		Traffic: make(map[string]RoadTraffic, len(roads)),
	}

	for i := 0; i < 10; i++ {
		orderTime := now.Add(time.Duration(1+rng.Intn(8)) * time.Hour)
		snap.Orders = append(snap.Orders, Order{
			OrderID:      fmt.Sprintf("ORD-%d", 1000+i),
			CustomerName: fmt.Sprintf("Customer %d", i+1),
			Address:      addresses[rng.Intn(len(addresses))],
			DeliveryWindow: DeliveryWindow{
				Start: orderTime.Add(-time.Hour).Format("15:04"),
				End:   orderTime.Add(time.Hour).Format("15:04"),
			},
			PackageDetails: PackageDetails{
				WeightKg:   float64(int((0.5+rng.Float64()*19.5)*10)) / 10,
				Dimensions: fmt.Sprintf("%dx%dx%d cm", 10+rng.Intn(41), 10+rng.Intn(41), 10+rng.Intn(21)),
				Fragile:    rng.Intn(2) == 0,
			},
			Priority: orderPriorities[rng.Intn(len(orderPriorities))],
		})
	}

	for i := 0; i < 5; i++ {
		maintenanceDue := rng.Intn(2) == 0
		address := "At depot"
		if rng.Intn(2) == 0 {
			address = "En route"
		}
		nextServiceDays := 30 + rng.Intn(61)
		if maintenanceDue {
			nextServiceDays = -10 + rng.Intn(41)
		}
		var issues []string
		if maintenanceDue && rng.Intn(2) == 0 {
			issues = []string{"Engine check light on", "Brake pads worn"}
		}
		snap.Vehicles = append(snap.Vehicles, Vehicle{
			VehicleID:  fmt.Sprintf("VEH-%d", 100+i),
			Type:       vehicleTypes[rng.Intn(len(vehicleTypes))],
			DriverName: fmt.Sprintf("Driver %d", i+1),
			CurrentLocation: Location{
				Latitude:  40 + rng.Float64()*2,
				Longitude: -74 + rng.Float64()*2,
				Address:   address,
			},
			Status:    vehicleStatuses[rng.Intn(len(vehicleStatuses))],
			FuelLevel: 20 + rng.Intn(81),
			Maintenance: Maintenance{
				LastService:    now.AddDate(0, 0, -(10 + rng.Intn(81))).Format("2006-01-02"),
				NextServiceDue: now.AddDate(0, 0, nextServiceDays).Format("2006-01-02"),
				Issues:         issues,
			},
			Capacity: Capacity{
				WeightKg: 500 + rng.Intn(1501),
				VolumeM3: 5 + rng.Intn(16),
			},
		})
	}

	for _, city := range cities {
		forecast := make([]ForecastEntry, 0, 4)
		for h := 1; h < 13; h += 3 {
			forecast = append(forecast, ForecastEntry{
				Time:         now.Add(time.Duration(h) * time.Hour).Format("15:04"),
				Condition:    weatherConditions[rng.Intn(len(weatherConditions))],
				TemperatureC: 5 + rng.Intn(31),
			})
		}
		snap.Weather[city] = CityWeather{
			Condition:       weatherConditions[rng.Intn(len(weatherConditions))],
			TemperatureC:    5 + rng.Intn(31),
			WindSpeedKmh:    rng.Intn(51),
			PrecipitationMm: float64(int(rng.Float64()*250)) / 10,
			Forecast:        forecast,
		}
	}

	for _, road := range roads {
		var incidents []Incident
		if rng.Float64() < 0.3 {
			incidents = []Incident{{
				Type:     incidentTypes[rng.Intn(len(incidentTypes))],
				Location: fmt.Sprintf("Km %d", 10+rng.Intn(41)),
				Impact:   incidentImpacts[rng.Intn(len(incidentImpacts))],
			}}
		}
		snap.Traffic[road] = RoadTraffic{
			CongestionLevel:       1 + rng.Intn(10),
			AverageSpeedKmh:       20 + rng.Intn(91),
			Incidents:             incidents,
			EstimatedDelayMinutes: rng.Intn(46),
		}
	}

	return snap
}
