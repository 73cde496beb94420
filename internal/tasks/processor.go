package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"devicegalaxy/internal/queue"
	"devicegalaxy/internal/storage"
)

type OrphanSweeper interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Processor executes tasks read from the job stream. A returned error
// leaves the message pending so it is claimed again later.
type Processor struct {
	logger     zerolog.Logger
	attributes OrphanSweeper
	sessions   SessionSweeper
	objects    storage.Store
}

type TaskPayload struct {
	Type string `json:"type"`
	// Prefixes is a comma separated list of object key prefixes.
	Prefixes string `json:"prefixes"`
}

func NewProcessor(logger zerolog.Logger, attributes OrphanSweeper, sessions SessionSweeper, objects storage.Store) *Processor {
	return &Processor{
		logger:     logger,
		attributes: attributes,
		sessions:   sessions,
		objects:    objects,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case queue.TaskOrphanSweep:
		return p.handleOrphanSweep(ctx)
	case queue.TaskSessionCleanup:
		return p.handleSessionCleanup(ctx)
	case queue.TaskPurgeImages:
		return p.handlePurgeImages(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

// handleOrphanSweep removes attribute rows no device references anymore.
func (p *Processor) handleOrphanSweep(ctx context.Context) error {
	n, err := p.attributes.DeleteOrphans(ctx)
	if err != nil {
		return fmt.Errorf("sweep orphaned attributes: %w", err)
	}
	p.logger.Info().Int64("deleted", n).Msg("orphan sweep finished")
	return nil
}

func (p *Processor) handleSessionCleanup(ctx context.Context) error {
	n, err := p.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	p.logger.Info().Int64("deleted", n).Msg("session cleanup finished")
	return nil
}

func (p *Processor) handlePurgeImages(ctx context.Context, payload TaskPayload) error {
	var errs []error
	for _, prefix := range strings.Split(payload.Prefixes, ",") {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		if err := p.objects.DeletePrefix(ctx, prefix); err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", prefix, err))
			continue
		}
		p.logger.Debug().Str("prefix", prefix).Msg("purged images")
	}
	return errors.Join(errs...)
}
