package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meridian-social/meridian/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             300 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	return db, err
}

func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Record{},
		&models.DuplicateRecord{},
		&models.Post{},
		&models.ThreadRef{},
		&models.FeedItem{},
		&models.PostEmbedImage{},
		&models.PostEmbedExternal{},
		&models.PostEmbedRecord{},
		&models.PostEmbedVideo{},
		&models.Quote{},
		&models.Threadgate{},
		&models.Postgate{},
		&models.PostAgg{},
		&models.Like{},
		&models.Repost{},
		&models.Actor{},
		&models.ProfileAgg{},
		&models.Follow{},
		&models.Block{},
		&models.Mute{},
		&models.List{},
		&models.ListItem{},
		&models.ListBlock{},
		&models.ListMute{},
		&models.Notification{},
	)
}
