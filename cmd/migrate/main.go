// Schema migration and admin role assignment.
// cmd/migrate/main.go
package main

import (
	"errors"
	"flag"
	"strings"

	"taxforms-api/config"
	"taxforms-api/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	admins := flag.String("admins", "", "comma separated emails to grant the admin role")
	flag.Parse()

	log := logrus.New()
	config.LoadEnv(log)
	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.WithError(err).Fatal("Auto migration failed")
	}
	log.Info("Schema migration completed")

	for _, email := range strings.Split(*admins, ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if err := grantAdmin(db, email); err != nil {
			log.WithError(err).WithField("email", email).Error("Failed to grant admin role")
			continue
		}
		log.WithField("email", email).Info("Admin role granted")
	}
}

func grantAdmin(db *gorm.DB, email string) error {
	var profile models.Profile
	if err := db.Where("email = ?", email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("no profile with that email")
		}
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", profile.UserID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserRole{
			ID:     uuid.NewString(),
			UserID: profile.UserID,
			Role:   models.RoleAdmin,
		}).Error
	})
}
