package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealerStatus is the lifecycle state of a dealer account.
type DealerStatus string

const (
	DealerActive   DealerStatus = "ACTIVE"
	DealerInactive DealerStatus = "INACTIVE"
	DealerBlocked  DealerStatus = "BLOCKED"
)

// Dealer is a retail/wholesale customer owned by one field rep.
type Dealer struct {
	ID            string          `json:"id" yaml:"id"`
	Code          string          `json:"code" yaml:"code"`
	Name          string          `json:"name" yaml:"name"`
	Category      string          `json:"category" yaml:"category"`
	City          string          `json:"city,omitempty" yaml:"city"`
	Phone         string          `json:"phone,omitempty" yaml:"phone"`
	CreditLimit   decimal.Decimal `json:"credit_limit" yaml:"credit_limit"`
	CreditDays    int             `json:"credit_days" yaml:"credit_days"`
	Latitude      *float64        `json:"latitude,omitempty" yaml:"latitude"`
	Longitude     *float64        `json:"longitude,omitempty" yaml:"longitude"`
	SalesPersonID string          `json:"sales_person_id" yaml:"sales_person_id"`
	Status        DealerStatus    `json:"status" yaml:"status"`
	LastOrderDate string          `json:"last_order_date,omitempty" yaml:"last_order_date"`
	LastVisitDate string          `json:"last_visit_date,omitempty" yaml:"last_visit_date"`
	CreatedAt     time.Time       `json:"created_at" yaml:"-"`
}

// ProductStatus is the catalogue state of a product.
type ProductStatus string

const (
	ProductActive       ProductStatus = "ACTIVE"
	ProductDiscontinued ProductStatus = "DISCONTINUED"
)

// Product is a catalogue item sold to dealers.
type Product struct {
	ID           string          `json:"id" yaml:"id"`
	Code         string          `json:"code" yaml:"code"`
	Name         string          `json:"name" yaml:"name"`
	ShortName    string          `json:"short_name" yaml:"short_name"`
	Category     string          `json:"category,omitempty" yaml:"category"`
	DealerPrice  decimal.Decimal `json:"dealer_price" yaml:"dealer_price"`
	MRP          decimal.Decimal `json:"mrp" yaml:"mrp"`
	ReorderLevel int             `json:"reorder_level" yaml:"reorder_level"`
	Status       ProductStatus   `json:"status" yaml:"status"`
}

// DisplayName prefers the short name.
func (p *Product) DisplayName() string {
	if p.ShortName != "" {
		return p.ShortName
	}
	return p.Name
}

// Role distinguishes field reps from their managers.
type Role string

const (
	RoleRep     Role = "REP"
	RoleManager Role = "MANAGER"
)

// SalesPerson is a field rep or a manager.
type SalesPerson struct {
	ID             string `json:"id" yaml:"id"`
	Code           string `json:"code" yaml:"code"`
	Name           string `json:"name" yaml:"name"`
	Role           Role   `json:"role" yaml:"role"`
	Territory      string `json:"territory,omitempty" yaml:"territory"`
	Phone          string `json:"phone,omitempty" yaml:"phone"`
	TelegramChatID string `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id"`
	Active         bool   `json:"active" yaml:"active"`
}

// DealerFilter narrows ListDealers.
type DealerFilter struct {
	SalesPersonID string
	Status        DealerStatus
	Limit         int
}
