// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scriptoria/manuscript-vault/internal/config"
	"github.com/scriptoria/manuscript-vault/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Manuscript{},
		&models.EncryptedFile{},
		&models.AccessRequest{},
		&models.AccessGrant{},
		&models.WatermarkSettings{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_role_status ON users(role, status)",

		// Manuscript indexes
		"CREATE INDEX IF NOT EXISTS idx_manuscripts_owner ON manuscripts(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_manuscripts_created_at ON manuscripts(created_at DESC)",

		// Request indexes
		"CREATE INDEX IF NOT EXISTS idx_access_requests_requester ON access_requests(requester_id)",
		"CREATE INDEX IF NOT EXISTS idx_access_requests_manuscript_status ON access_requests(manuscript_id, status)",

		// At most one active grant per (manuscript, grantee); approvals of
		// a pair with an active grant update that grant instead of adding
		// a second row, and this index backs that up at the schema level.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_one_active ON access_grants(manuscript_id, grantee_id) WHERE is_active",
		"CREATE INDEX IF NOT EXISTS idx_grants_expires_at ON access_grants(expires_at)",

		// Audit indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",

		// Full-text search indexes
		"CREATE INDEX IF NOT EXISTS idx_manuscripts_search ON manuscripts USING GIN(to_tsvector('english', title || ' ' || description))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username:    "admin",
			Email:       "admin@manuscript-vault.local",
			DisplayName: "System Administrator",
			Role:        models.UserRoleAdmin,
			Status:      models.UserStatusActive,
			ProfileData: models.JSONB{
				"seeded": true,
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// Create the watermark settings singleton
	var settingsCount int64
	db.Model(&models.WatermarkSettings{}).Count(&settingsCount)

	if settingsCount == 0 {
		settings := &models.WatermarkSettings{
			Enabled:          true,
			Text:             "Restricted archival material",
			FontSize:         18,
			Opacity:          0.3,
			Position:         models.WatermarkPositionDiagonal,
			Color:            "#808080",
			IncludeUserID:    true,
			IncludeTimestamp: true,
		}

		if err := db.Create(settings).Error; err != nil {
			return fmt.Errorf("failed to create watermark settings: %w", err)
		}

		log.Println("Default watermark settings created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
