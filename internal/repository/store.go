package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"devicegalaxy/internal/database"
)

type scanner interface {
	Scan(dest ...any) error
}

// Postgres is the Store backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	repos
}

type repos struct {
	users      *UserRepository
	devices    *DeviceRepository
	attributes *AttributeRepository
	tags       *TagRepository
	shares     *ShareRepository
}

func newRepos(db database.DBTX) repos {
	return repos{
		users:      NewUserRepository(db),
		devices:    NewDeviceRepository(db),
		attributes: NewAttributeRepository(db),
		tags:       NewTagRepository(db),
		shares:     NewShareRepository(db),
	}
}

func (r repos) Users() UserStore           { return r.users }
func (r repos) Devices() DeviceStore       { return r.devices }
func (r repos) Attributes() AttributeStore { return r.attributes }
func (r repos) Tags() TagStore             { return r.tags }
func (r repos) Shares() ShareStore         { return r.shares }

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:  pool,
		repos: newRepos(pool),
	}
}

func (p *Postgres) Sessions() SessionStore {
	return NewSessionRepository(p.pool)
}

func (p *Postgres) TwoFactor() TwoFactorStore {
	return NewTwoFactorRepository(p.pool)
}

func (p *Postgres) Cooldowns() CooldownStore {
	return NewCooldownRepository(p.pool)
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(newRepos(tx))
	})
}

// AttributeRepository and SessionRepository expose the concrete types
// used by maintenance jobs.
func (p *Postgres) AttributeRepository() *AttributeRepository {
	return p.attributes
}

func (p *Postgres) SessionRepository() *SessionRepository {
	return NewSessionRepository(p.pool)
}

func nonNilInts(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
