package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Group struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name" binding:"required"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GroupMember is the direct customer-to-group assignment table. A customer
// may additionally belong to a group through its latest note.
type GroupMember struct {
	GroupId    int       `gorm:"primaryKey" json:"group_id"`
	CustomerId int       `gorm:"primaryKey;index" json:"customer_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewGroup struct {
	Name string `json:"name" binding:"required"`
}

func CreateGroup(ctx context.Context, input *NewGroup, createdBy int) (*Group, error) {
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Group{}).Where("name = ?", input.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("group name already exists")
	}

	group := Group{Name: input.Name, CreatedBy: createdBy}
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func ListGroups(ctx context.Context) ([]*Group, error) {
	var groups []*Group
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func DeleteGroup(ctx context.Context, id int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&GroupMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Group{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func AssignCustomerToGroup(ctx context.Context, groupId int, customerId int) error {
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Group{}).Where("id = ?", groupId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("group not found")
	}
	if err := db.WithContext(ctx).Model(&Customer{}).Where("id = ?", customerId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("customer not found")
	}

	member := GroupMember{GroupId: groupId, CustomerId: customerId}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

func RemoveCustomerFromGroup(ctx context.Context, groupId int, customerId int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Where("group_id = ? AND customer_id = ?", groupId, customerId).Delete(&GroupMember{}).Error
}
