// Package database owns the connection, schema migration and seed data of
// the marketplace database.
//
// # Layout
//
//	database/
//	├── database.go      # Driver selection, migrations, category seeding
//	├── store/           # Table-level client used by the catalog and enrollment services
//	├── users/           # User accounts (auth service)
//	├── audit/           # Admin action and sign-in log
//	└── compensations/   # Partial-failure log consumed by the reconciler
//
// Every sub-package provides a Repository (or Client) built from the shared
// *gorm.DB:
//
//	db, err := database.Open(cfg.Database, logger.Warn)
//	usersRepo := users.NewRepository(db.DB)
//	client := store.New(db.DB, store.WithTransactions(cfg.Database.Transactional))
package database
