package internal

import (
	"context"
	"fmt"

	"it-asset-manager-api/internal/config"
	"it-asset-manager-api/internal/store/gormstore"
	"it-asset-manager-api/internal/store/sqlstore"
	"it-asset-manager-api/pkg/store"

	"github.com/sirupsen/logrus"
)

// OpenStore builds the store implementation selected by cfg.StoreDriver
func OpenStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQL, "":
		s, err := sqlstore.Open(ctx, cfg.DBDialect, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverGorm:
		s, err := gormstore.Open(ctx, cfg.DBDialect, cfg.DBDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
