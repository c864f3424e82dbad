//go:build integration

package cases

import (
	"context"
	"database/sql"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/classhub/identity-service/internal/application/identity"
	pg "github.com/classhub/identity-service/internal/infrastructure/db/postgres"
	"github.com/classhub/identity-service/internal/infrastructure/memory"
	"github.com/classhub/identity-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/classhub/identity-service/internal/infrastructure/security"
	itinfra "github.com/classhub/identity-service/test/integration/infra"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Deps struct {
	DB  *sql.DB
	RDB *goredis.Client

	Users  *pg.UserRepo
	Tokens *pg.TokenRepo
	Hasher identity.PasswordHasher
	Signer identity.TokenSigner
	Pub    identity.EventPublisher

	Svc *identity.Service
}

func MustNewDeps(t *testing.T, env itinfra.Env) *Deps {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	require.NoError(t, itinfra.WaitPostgres(ctx, env.PostgresDSN))

	db, err := sql.Open("pgx", env.PostgresDSN)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, pg.EnsureSchema(ctx, db))

	// redis is optional for the identity flows
	var rdb *goredis.Client
	if err := itinfra.WaitRedis(ctx, env.RedisAddr); err == nil {
		rdb = goredis.NewClient(&goredis.Options{Addr: env.RedisAddr})
	}

	// broker is optional too; use the noop publisher when absent
	var pub identity.EventPublisher = memory.NewNoopPublisher()
	if err := itinfra.WaitRabbit(ctx, env.RabbitURL); err == nil {
		p, err := rabbitmq.NewPublisher(env.RabbitURL)
		require.NoError(t, err)
		pub = p
	}

	users := pg.NewUserRepo(db)
	tokens := pg.NewTokenRepo(db)
	hasher := security.NewBcryptHasher(6) // low cost keeps the suite fast
	signer := security.NewJWTSigner("integration-test-secret", "identity-service-it")

	svc := identity.NewService(users, tokens, hasher, signer, pub, identity.Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		LockThreshold: 5,
		LockDuration:  30 * time.Minute,
	})

	return &Deps{
		DB: db, RDB: rdb,
		Users:  users,
		Tokens: tokens,
		Hasher: hasher,
		Signer: signer,
		Pub:    pub,
		Svc:    svc,
	}
}

func (d *Deps) Close(t *testing.T) {
	t.Helper()
	if c, ok := d.Pub.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if d.RDB != nil {
		_ = d.RDB.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

func (d *Deps) Reset(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, itinfra.ResetAll(ctx, d.DB, d.RDB))
}
