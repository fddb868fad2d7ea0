// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown closes every WebSocket, stops the janitor and disconnects Mongo.
// Sockets go first so no pump is left reading from a closed store.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if s := current(); s != nil {
		stats := s.realtime.Stats()
		s.realtime.Close()
		s.janitor.Stop()
		logger.Info("realtime closed",
			zap.Int("connections", stats.Connections),
			zap.Int("rooms", stats.Rooms))
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
