package models

import "time"

// InvoiceSequenceModel is the single-row global counter backing invoice
// sequence numbers. It is only ever mutated through an atomic
// increment-and-return at the storage layer.
type InvoiceSequenceModel struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}
