package models

import (
	"time"

	"gorm.io/gorm"
)

// Asset, License and Assignment are the tables reports are built from. They are
// maintained by the inventory screens; the scheduler only reads them.

type AssetStatus string

const (
	AssetStatusInStock  AssetStatus = "in_stock"
	AssetStatusAssigned AssetStatus = "assigned"
	AssetStatusRepair   AssetStatus = "in_repair"
	AssetStatusRetired  AssetStatus = "retired"
)

type Asset struct {
	gorm.Model
	Tag          string      `json:"tag" gorm:"uniqueIndex;not null"`
	Name         string      `json:"name" gorm:"not null"`
	Category     string      `json:"category"`
	SerialNumber string      `json:"serial_number"`
	Status       AssetStatus `json:"status" gorm:"not null"`
	Location     string      `json:"location"`
	Department   string      `json:"department" gorm:"index"`
	PurchasedAt  *time.Time  `json:"purchased_at"`
	Cost         float64     `json:"cost"`
}

type License struct {
	gorm.Model
	Name       string     `json:"name" gorm:"not null"`
	Vendor     string     `json:"vendor"`
	Seats      int        `json:"seats"`
	SeatsUsed  int        `json:"seats_used"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Department string     `json:"department" gorm:"index"`
}

type Assignment struct {
	gorm.Model
	AssetID      uint       `json:"asset_id" gorm:"index"`
	Asset        Asset      `json:"asset"`
	EmployeeName string     `json:"employee_name" gorm:"not null"`
	Department   string     `json:"department" gorm:"index"`
	AssignedAt   time.Time  `json:"assigned_at"`
	ReturnedAt   *time.Time `json:"returned_at"`
}
