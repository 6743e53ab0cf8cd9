package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero primary key before insert so ids are generated
// application side regardless of the database default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (m *Tenant) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *BudgetAllocation) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *BudgetTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *DisbursementRequest) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *ApprovalLevel) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *ApprovalItem) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *ProcurementPayment) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OutboxEvent) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// All lists every persisted model. Test suites migrate sqlite with it.
func All() []any {
	return []any{
		&Tenant{},
		&BudgetAllocation{},
		&BudgetTransaction{},
		&DisbursementRequest{},
		&ApprovalLevel{},
		&ApprovalItem{},
		&ProcurementPayment{},
		&OutboxEvent{},
	}
}
