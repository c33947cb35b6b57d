package models

import (
	"context"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"bitbucket.org/nextfollow/followup_backend/utils"
	"gorm.io/gorm/clause"
)

// Customer is the local follow-up record for an upstream ERP account.
// ExternalId is the join key against cached report rows; CreatedBy is the
// owning user and is never overwritten by a sync upsert.
type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ExternalId string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	AccountKey string    `gorm:"size:64;index" json:"account_key"`
	Name       string    `gorm:"size:100" json:"name"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Mobile     string    `gorm:"size:20" json:"mobile"`
	CreatedBy  int       `gorm:"index" json:"created_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerUpsert is the subset of a canonical report row the sync writes
// into the local table.
type CustomerUpsert struct {
	ExternalId string
	AccountKey string
	Name       string
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	var customer Customer
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomersByExternalIds resolves local rows for a page (or full set) of
// cached report rows in one query.
func CustomersByExternalIds(ctx context.Context, externalIds []string) (map[string]*Customer, error) {
	result := make(map[string]*Customer, len(externalIds))
	if len(externalIds) == 0 {
		return result, nil
	}

	var customers []*Customer
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("external_id IN ?", externalIds).Find(&customers).Error; err != nil {
		return nil, err
	}
	for _, c := range customers {
		result[c.ExternalId] = c
	}
	return result, nil
}

// UpsertCustomersFromReport inserts new customers and refreshes identity
// fields of existing ones, keyed by external_id. created_by is deliberately
// excluded from the update column set so ownership survives re-syncs.
func UpsertCustomersFromReport(ctx context.Context, rows []CustomerUpsert) error {
	if len(rows) == 0 {
		return nil
	}

	customers := make([]Customer, 0, len(rows))
	for _, r := range rows {
		if r.ExternalId == "" {
			continue
		}
		customers = append(customers, Customer{
			ExternalId: r.ExternalId,
			AccountKey: r.AccountKey,
			Name:       r.Name,
		})
	}
	if len(customers) == 0 {
		return nil
	}

	db := config.GetDB()
	const batchSize = 500
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_key", "name", "updated_at"}),
	}).CreateInBatches(customers, batchSize).Error
}

// CustomerAccessibleBy is the customer-access predicate: admins see
// everything, otherwise the user must own the row or be the manager on the
// customer's latest note.
func CustomerAccessibleBy(ctx context.Context, customer *Customer) (bool, error) {
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); ok && isAdmin {
		return true, nil
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return false, nil
	}
	if customer.CreatedBy == userId {
		return true, nil
	}

	handling, err := LatestNoteForCustomer(ctx, customer.ID)
	if err != nil {
		return false, err
	}
	if handling != nil && handling.ManagerId != nil && *handling.ManagerId == userId {
		return true, nil
	}
	return false, nil
}
