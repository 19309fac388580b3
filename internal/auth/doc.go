// Package auth provides identity, sessions and access control for the
// marketplace API.
//
// Accounts are stored through the users repository with bcrypt password
// hashes. A successful sign-in stores a small projection of the user in an
// scs session (sqlite-backed when the main database is sqlite). On every
// request Middleware.Handler resolves that session into an Actor, which
// handlers pass explicitly to the catalog and enrollment services.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex>     # enables CSRF protection when set
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true
//	AUTH_MAX_LOGIN_ATTEMPTS=5
//	AUTH_RATE_LIMIT_WINDOW=15m
//	AUTH_LOCKOUT_DURATION=30m
//
// # Usage
//
//	svc := auth.NewService(users.NewRepository(db), cfg.Auth)
//	svc.Subscribe(auditService.HandleAuthEvent)
//	sm, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	router.Use(sm.SessionLoadSave(), auth.NewMiddleware(svc, sm).Handler())
//	admin := router.Group("/api/admin", auth.RequireRole(entities.UserRoleAdmin))
package auth
