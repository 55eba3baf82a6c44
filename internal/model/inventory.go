package model

// InventoryPosition aggregates a product's stock across warehouses as of a
// date.
type InventoryPosition struct {
	ProductID     string
	OnHand        int
	Reserved      int
	PendingOrders int
	Incoming      int
}

// IncomingStock is an expected inbound delivery.
type IncomingStock struct {
	ID           string `json:"id" yaml:"id"`
	ProductID    string `json:"product_id" yaml:"product_id"`
	WarehouseID  string `json:"warehouse_id,omitempty" yaml:"warehouse_id"`
	Quantity     int    `json:"quantity" yaml:"quantity"`
	ExpectedDate string `json:"expected_date" yaml:"expected_date"`
	Status       string `json:"status" yaml:"status"`
}

// InventoryRow is one product's stock in one warehouse.
type InventoryRow struct {
	ProductID   string `json:"product_id" yaml:"product_id"`
	WarehouseID string `json:"warehouse_id" yaml:"warehouse_id"`
	OnHand      int    `json:"quantity_on_hand" yaml:"quantity_on_hand"`
	Reserved    int    `json:"quantity_reserved" yaml:"quantity_reserved"`
}

// Availability is an available-to-promise answer for one request.
type Availability struct {
	ProductID              string `json:"product_id"`
	ProductName            string `json:"product_name"`
	Requested              int    `json:"requested_quantity"`
	OnHand                 int    `json:"on_hand"`
	Reserved               int    `json:"reserved"`
	PendingOrders          int    `json:"pending_orders"`
	ATP                    int    `json:"available_to_promise"`
	IncomingWithinWindow   int    `json:"incoming_in_7_days"`
	CanFulfill             bool   `json:"can_fulfill"`
	Shortfall              int    `json:"shortfall"`
	CanFulfillWithIncoming bool   `json:"can_fulfill_with_incoming"`
	ReorderLevel           int    `json:"reorder_level"`
	BelowReorder           bool   `json:"below_reorder_level"`
}
