package models

import (
	"log"

	"bitbucket.org/nextfollow/followup_backend/config"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&User{},
		&Customer{},
		&Note{},
		&Group{},
		&GroupMember{},
		&Task{},
	)
	if err != nil {
		log.Printf("auto migration failed: %v", err)
	}
}
