package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"bitbucket.org/nextfollow/followup_backend/utils"
	"gorm.io/gorm"
)

// Note is one follow-up entry against a customer. The newest note per
// customer carries the "handling metadata": who manages the account, which
// group it currently sits in, and the agreed payment window.
type Note struct {
	ID                int        `gorm:"primary_key" json:"id"`
	CustomerId        int        `gorm:"index;not null" json:"customer_id" binding:"required"`
	Content           string     `gorm:"type:text" json:"content"`
	ManagerId         *int       `gorm:"index" json:"manager_id"`
	GroupId           *int       `gorm:"index" json:"group_id"`
	PaymentStartDate  *time.Time `json:"payment_start_date"`
	PaymentTargetDate *time.Time `json:"payment_target_date"`
	CreatedBy         int        `gorm:"index" json:"created_by"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type NewNote struct {
	CustomerId        int        `json:"customer_id" binding:"required"`
	Content           string     `json:"content"`
	ManagerId         *int       `json:"manager_id"`
	GroupId           *int       `json:"group_id"`
	PaymentStartDate  *time.Time `json:"payment_start_date"`
	PaymentTargetDate *time.Time `json:"payment_target_date"`
}

// LatestHandling is the note-derived metadata a query row is hydrated with.
type LatestHandling struct {
	CustomerId        int        `json:"-"`
	ManagerId         *int       `json:"manager_id"`
	ManagerName       string     `json:"manager_name,omitempty"`
	GroupId           *int       `json:"group_id"`
	GroupName         string     `json:"group_name,omitempty"`
	PaymentStartDate  *time.Time `json:"payment_start_date"`
	PaymentTargetDate *time.Time `json:"payment_target_date"`
}

func CreateNote(ctx context.Context, input *NewNote) (*Note, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Customer{}).Where("id = ?", input.CustomerId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("customer not found")
	}

	note := Note{
		CustomerId:        input.CustomerId,
		Content:           input.Content,
		ManagerId:         input.ManagerId,
		GroupId:           input.GroupId,
		PaymentStartDate:  input.PaymentStartDate,
		PaymentTargetDate: input.PaymentTargetDate,
		CreatedBy:         userId,
	}
	if err := db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func ListNotesForCustomer(ctx context.Context, customerId int) ([]*Note, error) {
	var notes []*Note
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("customer_id = ?", customerId).Order("id DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

const latestHandlingSelect = `
SELECT n.customer_id,
       n.manager_id,
       COALESCE(u.name, '') AS manager_name,
       n.group_id,
       COALESCE(g.name, '') AS group_name,
       n.payment_start_date,
       n.payment_target_date
FROM notes n
JOIN (
    SELECT customer_id, MAX(id) AS max_id
    FROM notes
    WHERE customer_id IN ?
    GROUP BY customer_id
) latest ON latest.max_id = n.id
LEFT JOIN users u ON u.id = n.manager_id
LEFT JOIN ` + "`groups`" + ` g ON g.id = n.group_id`

// LatestNoteForCustomer returns the handling metadata of the most recent
// note, or nil when the customer has no notes yet.
func LatestNoteForCustomer(ctx context.Context, customerId int) (*LatestHandling, error) {
	byId, err := LatestNotesByCustomerIds(ctx, []int{customerId})
	if err != nil {
		return nil, err
	}
	return byId[customerId], nil
}

// LatestNotesByCustomerIds is the batched variant: one query for a whole id
// set, so per-query latency stays bounded regardless of cache size.
func LatestNotesByCustomerIds(ctx context.Context, customerIds []int) (map[int]*LatestHandling, error) {
	result := make(map[int]*LatestHandling, len(customerIds))
	if len(customerIds) == 0 {
		return result, nil
	}

	var rows []*LatestHandling
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(latestHandlingSelect, customerIds).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.CustomerId] = r
	}
	return result, nil
}

// EligibleCustomerIds resolves which local customers pass the manager and/or
// group filters. Manager eligibility is defined by the latest note; group
// eligibility by direct assignment OR the latest note's group. At least one
// filter must be set by the caller.
func EligibleCustomerIds(ctx context.Context, managedBy *int, groupId *int) ([]int, error) {
	if managedBy == nil && groupId == nil {
		return nil, errors.New("no eligibility filter given")
	}

	sql := `
SELECT DISTINCT c.id
FROM customers c
LEFT JOIN notes n ON n.id = (
    SELECT MAX(n2.id) FROM notes n2 WHERE n2.customer_id = c.id
)`
	var args []interface{}
	var where []string

	if groupId != nil {
		sql += `
LEFT JOIN group_members gm ON gm.customer_id = c.id AND gm.group_id = ?`
		args = append(args, *groupId)
		where = append(where, "(gm.customer_id IS NOT NULL OR n.group_id = ?)")
		args = append(args, *groupId)
	}
	if managedBy != nil {
		where = append(where, "n.manager_id = ?")
		args = append(args, *managedBy)
	}

	sql += "\nWHERE " + where[0]
	for _, w := range where[1:] {
		sql += " AND " + w
	}

	var ids []int
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func DeleteNote(ctx context.Context, id int) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Delete(&Note{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
