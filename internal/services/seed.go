package services

import (
	"context"
	"fmt"
	"log/slog"

	"farmbook/internal/core"
	"farmbook/internal/storage"
)

const seedSeason = "2024 Long Rains"

// SeedOptions controls Seeder.Seed.
type SeedOptions struct {
	// Reset removes the user's existing fields and expenses first.
	Reset bool
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Fields   int `json:"fields"`
	Crops    int `json:"crops"`
	Harvests int `json:"harvests"`
	Expenses int `json:"expenses"`
	Sales    int `json:"sales"`
}

// Seeder loads an illustrative farm through the regular ledger operations.
type Seeder struct {
	ledger  *LedgerService
	storage *storage.SQLiteRepository
}

func NewSeeder(ledger *LedgerService, storage *storage.SQLiteRepository) *Seeder {
	return &Seeder{ledger: ledger, storage: storage}
}

type seedCrop struct {
	field             int
	name, variety     string
	planted, expected core.Date
}

type seedHarvest struct {
	quantity float64
	on       core.Date
	grade    core.QualityGrade
}

type seedExpense struct {
	field, crop int // index into the seeded slice, -1 for none
	category    core.ExpenseCategory
	item        string
	total       float64
	on          core.Date
}

type seedSale struct {
	on       core.Date
	buyer    string
	quantity float64
	price    float64
	total    float64
}

var (
	seedFields = []core.Field{
		{Name: "North Field", AreaHa: floatp(5.2), Location: "North side of farm", Season: seedSeason},
		{Name: "South Field", AreaHa: floatp(3.8), Location: "South side of farm", Season: seedSeason},
		{Name: "East Garden", AreaHa: floatp(1.5), Location: "East side of farm", Season: seedSeason},
	}

	seedCrops = []seedCrop{
		{0, "Maize", "Hybrid 511", core.NewDate(2024, 3, 15), core.NewDate(2024, 7, 15)},
		{0, "Beans", "Rose Coco", core.NewDate(2024, 3, 20), core.NewDate(2024, 6, 20)},
		{1, "Tomatoes", "Roma VF", core.NewDate(2024, 2, 10), core.NewDate(2024, 5, 10)},
		{2, "Kale", "Collard Greens", core.NewDate(2024, 1, 15), core.NewDate(2024, 4, 15)},
	}

	// One harvest per crop, same order.
	seedHarvests = []seedHarvest{
		{2500, core.NewDate(2024, 7, 10), core.GradeA},
		{800, core.NewDate(2024, 6, 15), core.GradeB},
		{1200, core.NewDate(2024, 5, 5), core.GradeA},
		{300, core.NewDate(2024, 4, 10), core.GradeA},
	}

	seedExpenses = []seedExpense{
		{0, -1, core.CategorySeeds, "Maize Seeds", 15000, core.NewDate(2024, 3, 10)},
		{0, -1, core.CategoryFertilizer, "NPK Fertilizer", 25000, core.NewDate(2024, 3, 12)},
		{1, -1, core.CategorySeeds, "Tomato Seeds", 8000, core.NewDate(2024, 2, 5)},
		{2, -1, core.CategoryEquipment, "Garden Tools", 12000, core.NewDate(2024, 1, 10)},
		{-1, 0, core.CategoryLabor, "Maize Planting Labor", 18000, core.NewDate(2024, 3, 16)},
		{-1, 1, core.CategoryPesticides, "Bean Insecticide", 9500, core.NewDate(2024, 4, 1)},
		{-1, 2, core.CategoryLabor, "Tomato Harvesting", 22000, core.NewDate(2024, 5, 6)},
		{-1, 3, core.CategoryTransport, "Kale Transport", 6500, core.NewDate(2024, 4, 11)},
	}

	// One sale per harvest, same order.
	seedSales = []seedSale{
		{core.NewDate(2024, 7, 12), "Local Market", 2000, 25, 50000},
		{core.NewDate(2024, 6, 18), "Cooperative", 600, 35, 21000},
		{core.NewDate(2024, 5, 8), "Restaurant Chain", 1000, 40, 40000},
		{core.NewDate(2024, 4, 12), "Farmers Market", 250, 30, 7500},
	}
)

func floatp(v float64) *float64 { return &v }

// Seed creates the sample farm for the caller. It is additive unless
// opts.Reset is set. A failure part way leaves the rows created so far.
func (s *Seeder) Seed(ctx context.Context, id core.Identity, opts SeedOptions) (SeedResult, error) {
	if err := id.Require(); err != nil {
		return SeedResult{}, err
	}

	if opts.Reset {
		if err := s.reset(ctx, id); err != nil {
			return SeedResult{}, err
		}
	}

	var res SeedResult

	fields := make([]core.Field, 0, len(seedFields))
	for _, f := range seedFields {
		created, err := s.ledger.CreateField(ctx, id, f)
		if err != nil {
			return res, fmt.Errorf("seed field %q: %w", f.Name, err)
		}
		fields = append(fields, created)
		res.Fields++
	}

	crops := make([]core.Crop, 0, len(seedCrops))
	for _, c := range seedCrops {
		created, err := s.ledger.CreateCrop(ctx, id, core.Crop{
			FieldID:             fields[c.field].ID,
			Name:                c.name,
			Variety:             c.variety,
			Season:              seedSeason,
			PlantingDate:        c.planted,
			ExpectedHarvestDate: c.expected,
		})
		if err != nil {
			return res, fmt.Errorf("seed crop %q: %w", c.name, err)
		}
		crops = append(crops, created)
		res.Crops++
	}

	harvests := make([]core.Harvest, 0, len(seedHarvests))
	for i, h := range seedHarvests {
		created, err := s.ledger.CreateHarvest(ctx, id, core.Harvest{
			CropID:       crops[i].ID,
			HarvestedOn:  h.on,
			Quantity:     h.quantity,
			Unit:         core.UnitKg,
			QualityGrade: h.grade,
			Season:       seedSeason,
		})
		if err != nil {
			return res, fmt.Errorf("seed harvest for %q: %w", crops[i].Name, err)
		}
		harvests = append(harvests, created)
		res.Harvests++
	}

	for _, e := range seedExpenses {
		exp := core.Expense{
			Category:    e.category,
			Item:        e.item,
			TotalCost:   core.NewMoney(e.total),
			PurchasedOn: e.on,
			Season:      seedSeason,
		}
		if e.field >= 0 {
			exp.FieldID = &fields[e.field].ID
		}
		if e.crop >= 0 {
			exp.CropID = &crops[e.crop].ID
		}
		if _, err := s.ledger.CreateExpense(ctx, id, exp); err != nil {
			return res, fmt.Errorf("seed expense %q: %w", e.item, err)
		}
		res.Expenses++
	}

	for i, sl := range seedSales {
		_, err := s.ledger.CreateSale(ctx, id, core.Sale{
			HarvestID:    harvests[i].ID,
			SoldOn:       sl.on,
			Buyer:        sl.buyer,
			Quantity:     sl.quantity,
			Unit:         string(core.UnitKg),
			PricePerUnit: core.NewMoney(sl.price),
			TotalAmount:  core.NewMoney(sl.total),
			Season:       seedSeason,
		})
		if err != nil {
			return res, fmt.Errorf("seed sale to %q: %w", sl.buyer, err)
		}
		res.Sales++
	}

	slog.InfoContext(ctx, "Seeded sample farm",
		"user_id", id.UserID,
		"fields", res.Fields,
		"crops", res.Crops,
		"expenses", res.Expenses,
		"sales", res.Sales)
	return res, nil
}

// reset clears the caller's farm and announces every removed expense and
// sale so the mirror drops them too.
func (s *Seeder) reset(ctx context.Context, id core.Identity) error {
	removed, err := s.storage.DeleteFarm(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("reset farm: %w", err)
	}
	s.ledger.publishDeleted(ctx, core.KindExpense, removed.ExpenseIDs, id.UserID)
	s.ledger.publishDeleted(ctx, core.KindSale, removed.SaleIDs, id.UserID)

	slog.InfoContext(ctx, "Reset farm data before seeding",
		"user_id", id.UserID,
		"fields", removed.Fields,
		"expenses", len(removed.ExpenseIDs),
		"sales", len(removed.SaleIDs))
	return nil
}
