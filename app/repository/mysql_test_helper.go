package repository

import (
	"fmt"
	"testing"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/internal/pkg/database"
	"github.com/PricePilot/PricePilot/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// resolveTestDatabase tries the usual MySQL endpoints and returns an open
// handle, skipping the calling test when none is reachable.
func resolveTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	hosts := uniqueValues([]string{
		env.GetEnv("DB_HOST", ""),
		"db",
		"mysql",
		"localhost",
		"127.0.0.1",
	}, false)
	ports := uniqueValues([]string{
		env.GetEnv("DB_PORT", "3306"),
		"3306",
	}, false)
	users := uniqueValues([]string{
		env.GetEnv("DB_USER", ""),
		"pricepilot",
		"root",
	}, false)
	passwords := uniqueValues([]string{
		env.GetEnv("DB_PASSWORD", ""),
		"pricepilot",
		"root",
		"",
	}, true)
	names := uniqueValues([]string{
		env.GetEnv("DB_NAME", ""),
		"pricepilot_test",
		"pricepilot",
	}, false)

	var lastErr error
	for _, host := range hosts {
		for _, port := range ports {
			for _, user := range users {
				for _, password := range passwords {
					for _, name := range names {
						dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=1s",
							user, password, host, port, name)
						db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
							Logger: logger.Discard,
						})
						if err != nil {
							lastErr = err
							continue
						}
						sqlDB, err := db.DB()
						if err != nil {
							lastErr = err
							continue
						}
						if err := sqlDB.Ping(); err != nil {
							lastErr = err
							_ = sqlDB.Close()
							continue
						}
						return db
					}
				}
			}
		}
	}

	t.Skipf("Skipping MySQL-dependent test: no reachable database endpoint (%v)", lastErr)
	return nil
}

func uniqueValues(values []string, keepEmpty bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" && !keepEmpty {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// setupTestDatabase connects to the test database, migrates the schema,
// wires the shared handle and returns a clean slate. Rows are wiped before
// and after each test so runs never see each other's state.
func setupTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	db := resolveTestDatabase(t)
	if err := db.AutoMigrate(
		&models.Subscription{},
		&models.ModifiedProduct{},
		&models.PricingHistory{},
		&models.WebhookEvent{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	database.SetDB(db)
	resetTestTables(t, db)
	t.Cleanup(func() {
		resetTestTables(t, db)
	})
	return db
}

func resetTestTables(t *testing.T, db *gorm.DB) {
	t.Helper()

	wipe := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{
		&models.ModifiedProduct{},
		&models.Subscription{},
		&models.PricingHistory{},
		&models.WebhookEvent{},
	} {
		if err := wipe.Delete(model).Error; err != nil {
			t.Fatalf("failed to wipe test table %T: %v", model, err)
		}
	}
}
