package models

import (
	"context"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"bitbucket.org/nextfollow/followup_backend/utils"
	"gorm.io/gorm"
)

type Task struct {
	ID         int        `gorm:"primary_key" json:"id"`
	CustomerId *int       `gorm:"index" json:"customer_id"`
	Title      string     `gorm:"size:200;not null" json:"title" binding:"required"`
	Details    string     `gorm:"type:text" json:"details"`
	DueDate    *time.Time `json:"due_date"`
	Done       *bool      `gorm:"not null;default:false" json:"done"`
	AssignedTo *int       `gorm:"index" json:"assigned_to"`
	CreatedBy  int        `gorm:"index" json:"created_by"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTask struct {
	CustomerId *int       `json:"customer_id"`
	Title      string     `json:"title" binding:"required"`
	Details    string     `json:"details"`
	DueDate    *time.Time `json:"due_date"`
	AssignedTo *int       `json:"assigned_to"`
}

func CreateTask(ctx context.Context, input *NewTask) (*Task, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	task := Task{
		CustomerId: input.CustomerId,
		Title:      input.Title,
		Details:    input.Details,
		DueDate:    input.DueDate,
		Done:       utils.NewFalse(),
		AssignedTo: input.AssignedTo,
		CreatedBy:  userId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns the caller's tasks (created by or assigned to), newest
// first. Admins see all tasks.
func ListTasks(ctx context.Context, openOnly bool) ([]*Task, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&Task{})

	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
		userId, _ := utils.GetUserIdFromContext(ctx)
		q = q.Where("created_by = ? OR assigned_to = ?", userId, userId)
	}
	if openOnly {
		q = q.Where("done = ?", false)
	}

	var tasks []*Task
	if err := q.Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func SetTaskDone(ctx context.Context, id int, done bool) (*Task, error) {
	db := config.GetDB()
	var task Task
	if err := db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&task).UpdateColumn("done", done).Error; err != nil {
		return nil, err
	}
	task.Done = &done
	return &task, nil
}

func DeleteTask(ctx context.Context, id int) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Delete(&Task{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
