package store

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fieldops/internal/model"
)

// Fixtures is a reference data set loaded by `fieldops seed`. Money values
// are quoted strings so they decode exactly.
type Fixtures struct {
	SalesPersons  []model.SalesPerson   `yaml:"sales_persons"`
	Dealers       []model.Dealer        `yaml:"dealers"`
	Products      []model.Product       `yaml:"products"`
	Inventory     []model.InventoryRow  `yaml:"inventory"`
	IncomingStock []model.IncomingStock `yaml:"incoming_stock"`
	Visits        []model.Visit         `yaml:"visits"`
	Commitments   []model.Commitment    `yaml:"commitments"`
	Orders        []model.Order         `yaml:"orders"`
	Invoices      []model.Invoice       `yaml:"invoices"`
	Payments      []model.Payment       `yaml:"payments"`
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read fixtures %s", path)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "store: parse fixtures %s", path)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects fixtures that would break store invariants.
func (f *Fixtures) Validate() error {
	for i := range f.Commitments {
		c := &f.Commitments[i]
		if c.Status == "" {
			c.Status = model.StatusFor(c.QuantityPromised, c.ConvertedQuantity)
		}
		if err := c.Validate(); err != nil {
			return eris.Wrapf(err, "store: fixture commitment %s", c.ID)
		}
	}
	for i := range f.Dealers {
		if f.Dealers[i].Status == "" {
			f.Dealers[i].Status = model.DealerActive
		}
	}
	for i := range f.Products {
		if f.Products[i].Status == "" {
			f.Products[i].Status = model.ProductActive
		}
	}
	for i := range f.Invoices {
		inv := &f.Invoices[i]
		if inv.Status == "" {
			inv.Status = model.InvoiceStatusFor(inv.Total, inv.AmountPaid)
		}
	}
	return nil
}

// Counts summarises what a fixture set holds, for logging.
func (f *Fixtures) Counts() map[string]int {
	items := 0
	for _, o := range f.Orders {
		items += len(o.Items)
	}
	return map[string]int{
		"sales_persons":  len(f.SalesPersons),
		"dealers":        len(f.Dealers),
		"products":       len(f.Products),
		"inventory":      len(f.Inventory),
		"incoming_stock": len(f.IncomingStock),
		"visits":         len(f.Visits),
		"commitments":    len(f.Commitments),
		"orders":         len(f.Orders),
		"order_items":    items,
		"invoices":       len(f.Invoices),
		"payments":       len(f.Payments),
	}
}
