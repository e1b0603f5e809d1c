// Package database handles the optional MySQL connection backing the asset catalog.
//
// It wraps GORM and configures the connection pool and timeouts from the
// application's configuration. Callers treat a failed connection as "no catalog"
// rather than a fatal error.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Catalog disabled", zap.Error(err))
//	}
package database
