package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CategorySeeds      ExpenseCategory = "Seeds"
	CategoryFertilizer ExpenseCategory = "Fertilizer"
	CategoryPesticides ExpenseCategory = "Pesticides"
	CategoryLabor      ExpenseCategory = "Labor"
	CategoryEquipment  ExpenseCategory = "Equipment"
	CategoryFuel       ExpenseCategory = "Fuel"
	CategoryTransport  ExpenseCategory = "Transport"
	CategoryStorage    ExpenseCategory = "Storage"
	CategoryOther      ExpenseCategory = "Other"
)

const (
	UnitKg      HarvestUnit = "kg"
	UnitTons    HarvestUnit = "tons"
	UnitBags    HarvestUnit = "bags"
	UnitCrates  HarvestUnit = "crates"
	UnitBundles HarvestUnit = "bundles"
	UnitPieces  HarvestUnit = "pieces"
)

const (
	GradeA     QualityGrade = "Grade A"
	GradeB     QualityGrade = "Grade B"
	GradeC     QualityGrade = "Grade C"
	GradeMixed QualityGrade = "Mixed"
)

const dateLayout = "2006-01-02"

type (
	ExpenseCategory string
	HarvestUnit     string
	QualityGrade    string

	// Date is a calendar day. The zero value means "not set".
	Date struct {
		time.Time
	}

	// Identity is the authenticated caller. The zero value means no session.
	Identity struct {
		UserID int64  `json:"userId"`
		Email  string `json:"email"`
		Name   string `json:"name"`
	}

	User struct {
		ID           int64     `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Session struct {
		Token     string    `json:"token"`
		UserID    int64     `json:"userId"`
		ExpiresAt time.Time `json:"expiresAt"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Field struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"userId"`
		Name      string    `json:"name"`
		AreaHa    *float64  `json:"areaHa,omitempty"`
		Location  string    `json:"location,omitempty"`
		Season    string    `json:"season"`
		Notes     string    `json:"notes,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Crop struct {
		ID                  int64     `json:"id"`
		UserID              int64     `json:"userId"`
		FieldID             int64     `json:"fieldId"`
		FieldName           string    `json:"fieldName,omitempty"`
		Name                string    `json:"name"`
		Variety             string    `json:"variety,omitempty"`
		Season              string    `json:"season"`
		PlantingDate        Date      `json:"plantingDate"`
		ExpectedHarvestDate Date      `json:"expectedHarvestDate"`
		Notes               string    `json:"notes,omitempty"`
		CreatedAt           time.Time `json:"createdAt"`
		UpdatedAt           time.Time `json:"updatedAt"`
	}

	Activity struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"userId"`
		CropID      int64     `json:"cropId"`
		CropName    string    `json:"cropName,omitempty"`
		Type        string    `json:"type"`
		PerformedOn Date      `json:"performedOn"`
		LaborHours  *float64  `json:"laborHours,omitempty"`
		Season      string    `json:"season"`
		Notes       string    `json:"notes,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	Expense struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"userId"`
		CropID      *int64          `json:"cropId,omitempty"`
		CropName    string          `json:"cropName,omitempty"`
		FieldID     *int64          `json:"fieldId,omitempty"`
		FieldName   string          `json:"fieldName,omitempty"`
		Category    ExpenseCategory `json:"category"`
		Item        string          `json:"item"`
		Quantity    *float64        `json:"quantity,omitempty"`
		Unit        string          `json:"unit,omitempty"`
		CostPerUnit *Money          `json:"costPerUnit,omitempty"`
		TotalCost   Money           `json:"totalCost"`
		PurchasedOn Date            `json:"purchasedOn"`
		Season      string          `json:"season"`
		Notes       string          `json:"notes,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	Harvest struct {
		ID           int64        `json:"id"`
		UserID       int64        `json:"userId"`
		CropID       int64        `json:"cropId"`
		CropName     string       `json:"cropName,omitempty"`
		HarvestedOn  Date         `json:"harvestedOn"`
		Quantity     float64      `json:"quantity"`
		Unit         HarvestUnit  `json:"unit"`
		QualityGrade QualityGrade `json:"qualityGrade,omitempty"`
		Season       string       `json:"season"`
		Notes        string       `json:"notes,omitempty"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}

	Sale struct {
		ID           int64     `json:"id"`
		UserID       int64     `json:"userId"`
		HarvestID    int64     `json:"harvestId"`
		CropName     string    `json:"cropName,omitempty"`
		SoldOn       Date      `json:"soldOn"`
		Buyer        string    `json:"buyer,omitempty"`
		Quantity     float64   `json:"quantity"`
		Unit         string    `json:"unit"`
		PricePerUnit Money     `json:"pricePerUnit"`
		TotalAmount  Money     `json:"totalAmount"`
		Season       string    `json:"season"`
		Notes        string    `json:"notes,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}
)

// ExpenseCategories lists the accepted expense categories in display order.
var ExpenseCategories = []ExpenseCategory{
	CategorySeeds, CategoryFertilizer, CategoryPesticides, CategoryLabor,
	CategoryEquipment, CategoryFuel, CategoryTransport, CategoryStorage, CategoryOther,
}

var HarvestUnits = []HarvestUnit{UnitKg, UnitTons, UnitBags, UnitCrates, UnitBundles, UnitPieces}

var QualityGrades = []QualityGrade{GradeA, GradeB, GradeC, GradeMixed}

// IsZero reports whether the identity is the "no session" value.
func (id Identity) IsZero() bool {
	return id.UserID <= 0
}

// Require returns ErrUnauthorized for the zero identity.
func (id Identity) Require() error {
	if id.IsZero() {
		return ErrUnauthorized
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if y := d.Year(); y < 1900 || y > 2999 {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (c ExpenseCategory) Validate() error {
	for _, v := range ExpenseCategories {
		if c == v {
			return nil
		}
	}
	return ErrInvalidCategory
}

func (u HarvestUnit) Validate() error {
	for _, v := range HarvestUnits {
		if u == v {
			return nil
		}
	}
	return ErrInvalidUnit
}

// Validate accepts the empty grade, which means "not graded".
func (g QualityGrade) Validate() error {
	if g == "" {
		return nil
	}
	for _, v := range QualityGrades {
		if g == v {
			return nil
		}
	}
	return ErrInvalidGrade
}

func (f Field) Validate() error {
	if err := requireText("name", f.Name, 120); err != nil {
		return err
	}
	if err := requireText("season", f.Season, 80); err != nil {
		return err
	}
	if f.AreaHa != nil && *f.AreaHa < 0 {
		return Invalid("areaHa", ErrInvalidQuantity)
	}
	return nil
}

func (c Crop) Validate() error {
	if c.FieldID <= 0 {
		return Invalid("fieldId", ErrMissingParent)
	}
	if err := requireText("name", c.Name, 120); err != nil {
		return err
	}
	if err := requireText("season", c.Season, 80); err != nil {
		return err
	}
	if !c.PlantingDate.IsZero() && !c.ExpectedHarvestDate.IsZero() &&
		c.ExpectedHarvestDate.Before(c.PlantingDate.Time) {
		return Invalid("expectedHarvestDate", errors.New("before planting date"))
	}
	return nil
}

func (a Activity) Validate() error {
	if a.CropID <= 0 {
		return Invalid("cropId", ErrMissingParent)
	}
	if err := requireText("type", a.Type, 80); err != nil {
		return err
	}
	if err := a.PerformedOn.Validate(); err != nil {
		return Invalid("performedOn", err)
	}
	if a.LaborHours != nil && *a.LaborHours < 0 {
		return Invalid("laborHours", ErrInvalidQuantity)
	}
	if err := requireText("season", a.Season, 80); err != nil {
		return err
	}
	return nil
}

func (e Expense) Validate() error {
	if e.CropID != nil && *e.CropID <= 0 {
		return Invalid("cropId", ErrMissingParent)
	}
	if e.FieldID != nil && *e.FieldID <= 0 {
		return Invalid("fieldId", ErrMissingParent)
	}
	if err := e.Category.Validate(); err != nil {
		return Invalid("category", err)
	}
	if err := requireText("item", e.Item, 200); err != nil {
		return err
	}
	if e.Quantity != nil && *e.Quantity < 0 {
		return Invalid("quantity", ErrInvalidQuantity)
	}
	if e.CostPerUnit != nil && e.CostPerUnit.Cents < 0 {
		return Invalid("costPerUnit", ErrInvalidAmount)
	}
	if err := e.TotalCost.Validate(); err != nil {
		return Invalid("totalCost", err)
	}
	if err := e.PurchasedOn.Validate(); err != nil {
		return Invalid("purchasedOn", err)
	}
	if err := requireText("season", e.Season, 80); err != nil {
		return err
	}
	return nil
}

func (h Harvest) Validate() error {
	if h.CropID <= 0 {
		return Invalid("cropId", ErrMissingParent)
	}
	if err := h.HarvestedOn.Validate(); err != nil {
		return Invalid("harvestedOn", err)
	}
	if h.Quantity <= 0 {
		return Invalid("quantity", ErrInvalidQuantity)
	}
	if err := h.Unit.Validate(); err != nil {
		return Invalid("unit", err)
	}
	if err := h.QualityGrade.Validate(); err != nil {
		return Invalid("qualityGrade", err)
	}
	if err := requireText("season", h.Season, 80); err != nil {
		return err
	}
	return nil
}

func (s Sale) Validate() error {
	if s.HarvestID <= 0 {
		return Invalid("harvestId", ErrMissingParent)
	}
	if err := s.SoldOn.Validate(); err != nil {
		return Invalid("soldOn", err)
	}
	if s.Quantity <= 0 {
		return Invalid("quantity", ErrInvalidQuantity)
	}
	if err := requireText("unit", s.Unit, 40); err != nil {
		return err
	}
	if err := s.PricePerUnit.Validate(); err != nil {
		return Invalid("pricePerUnit", err)
	}
	if err := s.TotalAmount.Validate(); err != nil {
		return Invalid("totalAmount", err)
	}
	if err := requireText("season", s.Season, 80); err != nil {
		return err
	}
	return nil
}

func requireText(field, value string, max int) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return Invalid(field, ErrEmptyValue)
	}
	if len(v) > max {
		return Invalid(field, fmt.Errorf("too long (max %d characters)", max))
	}
	return nil
}
