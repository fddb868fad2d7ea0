// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/realtime"
	accountstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/accounts"
	commentstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/comments"
	credentialstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/credentials"
	loginstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/logins"
	projectstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/projects"
	taskstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/tasks"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/ratelimit"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/workers"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// services is the object graph Startup builds and BuildHandler/Shutdown use.
type services struct {
	accounts *accountstore.Store
	projects *projectstore.Store
	tasks    *taskstore.Store
	comments *commentstore.Store
	history  *loginstore.Store

	provider identity.Provider
	auth     *auth.Middleware
	gateway  *gateway.Gateway
	realtime *realtime.Manager
	cursors  *paging.Codec
	logins   *ratelimit.Limiter
	janitor  *workers.Janitor
}

var (
	svcMu sync.Mutex
	svc   *services
)

func current() *services {
	svcMu.Lock()
	defer svcMu.Unlock()
	return svc
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It wires
// stores, the identity provider, the access guard, the room manager and the
// mutation gateway, and starts the background janitor.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	s, err := wire(appCfg, deps.MongoDatabase, logger)
	if err != nil {
		return err
	}
	if err := ensureAdmin(ctx, deps.MongoDatabase, appCfg.AdminEmail, logger); err != nil {
		return err
	}

	s.janitor.Start()

	svcMu.Lock()
	svc = s
	svcMu.Unlock()

	logger.Info("task hub wired",
		zap.String("identity_provider", s.provider.Name()),
		zap.String("ws_overflow_policy", appCfg.WSOverflowPolicy),
		zap.Int("ws_send_buffer", appCfg.WSSendBuffer))
	return nil
}

func wire(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) (*services, error) {
	s := &services{
		accounts: accountstore.New(db),
		projects: projectstore.New(db),
		tasks:    taskstore.New(db),
		comments: commentstore.New(db),
		history:  loginstore.New(db),
	}

	provider, err := newProvider(appCfg, credentialstore.New(db), logger)
	if err != nil {
		return nil, err
	}
	s.provider = provider
	s.auth = auth.NewMiddleware(provider, s.accounts, logger)

	var block []byte
	if appCfg.CursorBlockKey != "" {
		block = []byte(appCfg.CursorBlockKey)
	}
	s.cursors = paging.NewCodec([]byte(appCfg.CursorHashKey), block)

	overflow, err := realtime.ParseOverflowPolicy(appCfg.WSOverflowPolicy)
	if err != nil {
		return nil, err
	}
	guard := accesspolicy.NewGuard(s.projects, s.tasks, s.comments)
	s.realtime = realtime.NewManager(s.auth, guard, realtime.Config{
		SendBuffer:     appCfg.WSSendBuffer,
		Overflow:       overflow,
		AllowedOrigins: appCfg.WSAllowedOrigins,
	}, logger)

	s.gateway = gateway.New(gateway.Deps{
		Guard:    guard,
		Accounts: s.accounts,
		Projects: s.projects,
		Tasks:    s.tasks,
		Comments: s.comments,
		Bus:      s.realtime,
		Log:      logger,
	})

	s.logins = ratelimit.New(ratelimit.Per(appCfg.LoginAttempts, time.Minute), appCfg.LoginAttempts)
	s.janitor = workers.NewJanitor(map[string]workers.Sweeper{
		"ws_inbound":     s.realtime.Inbound(),
		"login_attempts": s.logins,
	}, logger, appCfg.JanitorInterval, 2*appCfg.JanitorInterval)

	return s, nil
}

func newProvider(appCfg AppConfig, creds identity.CredentialStore, logger *zap.Logger) (identity.Provider, error) {
	switch appCfg.IdentityProvider {
	case "local":
		tokens, err := identity.NewTokenIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
		if err != nil {
			return nil, err
		}
		return identity.NewLocalProvider(creds, tokens), nil
	case "supabase":
		return identity.NewSupabaseProvider(identity.SupabaseConfig{
			URL:     appCfg.SupabaseURL,
			AnonKey: appCfg.SupabaseAnonKey,
		}, logger), nil
	}
	return nil, fmt.Errorf("unknown identity_provider %q", appCfg.IdentityProvider)
}

// ensureAdmin promotes the account with email to ADMIN. Accounts are only
// created through signup, so a missing account is logged and skipped.
func ensureAdmin(ctx context.Context, db *mongo.Database, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	email = identity.NormalizeEmail(email)

	res, err := db.Collection("accounts").UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"role": models.RoleAdmin, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	switch {
	case res.MatchedCount == 0:
		logger.Warn("admin_email has no account yet; sign up first", zap.String("email", email))
	case res.ModifiedCount > 0:
		logger.Info("promoted account to ADMIN", zap.String("email", email))
	}
	return nil
}

var errNotStarted = errors.New("bootstrap: Startup has not run")
