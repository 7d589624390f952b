package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/store"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/persistence"
	"github.com/embedq/embedq/infrastructure/provision"
	"github.com/embedq/embedq/infrastructure/trigger"
	"github.com/embedq/embedq/internal/database"
	"gorm.io/gorm"
)

// Status is the operator-facing view of one vectorizer.
type Status struct {
	Vectorizer vectorizer.Vectorizer
	// Pending is the approximate queue depth; queue.ApproxOverflow means
	// the backlog exceeds the probe bound.
	Pending int64
	// Failed is the failed-queue size.
	Failed int64
}

// VectorizerService manages vectorizer lifecycle: creation with full
// provisioning, removal, and the enable/disable switch.
type VectorizerService struct {
	db          database.Database
	store       vectorizer.Store
	inspector   provision.Inspector
	provisioner provision.Provisioner
	triggers    trigger.Generator
	defaults    vectorizer.Defaults
	logger      *slog.Logger
}

// NewVectorizerService creates a new VectorizerService.
func NewVectorizerService(
	db database.Database,
	vectorizers vectorizer.Store,
	provisioner provision.Provisioner,
	defaults vectorizer.Defaults,
	logger *slog.Logger,
) *VectorizerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorizerService{
		db:          db,
		store:       vectorizers,
		inspector:   provision.NewInspector(db),
		provisioner: provisioner,
		triggers:    trigger.NewGenerator(db),
		defaults:    defaults,
		logger:      logger,
	}
}

// Create registers a vectorizer and provisions everything it owns: queue
// tables, destination objects, the change-capture trigger, and the initial
// backfill. The whole operation runs in one transaction — a failure at any
// point leaves no trace.
func (s *VectorizerService) Create(ctx context.Context, name, sourceTable string, cfg vectorizer.Config) (vectorizer.Vectorizer, error) {
	if strings.TrimSpace(name) == "" {
		return vectorizer.Vectorizer{}, fmt.Errorf("%w: vectorizer name is empty", vectorizer.ErrInvalidArgument)
	}

	source, err := s.inspector.InspectTable(ctx, sourceTable)
	if err != nil {
		return vectorizer.Vectorizer{}, err
	}

	cfg = cfg.Resolve(s.defaults)
	cfg = fillDestinationNames(cfg, sourceTable)
	if err := cfg.Validate(source); err != nil {
		return vectorizer.Vectorizer{}, err
	}

	created, err := database.WithTransactionResult(ctx, s.db, func(tx *gorm.DB) (vectorizer.Vectorizer, error) {
		ctx := database.ContextWithTx(ctx, tx)

		// First save assigns the id the derived object names hang off.
		draft := vectorizer.NewVectorizer(name, sourceTable, source.PrimaryKey(), "", "", "", cfg)
		saved, err := s.store.Save(ctx, draft)
		if err != nil {
			return vectorizer.Vectorizer{}, err
		}

		id := saved.ID()
		v := vectorizer.NewVectorizerWithID(
			id, name, sourceTable, source.PrimaryKey(),
			provision.TriggerName(id),
			provision.QueueTableName(id),
			provision.FailedQueueTableName(id),
			cfg, true,
			saved.CreatedAt(), saved.UpdatedAt(),
		)
		if v, err = s.store.Save(ctx, v); err != nil {
			return vectorizer.Vectorizer{}, err
		}

		if err := s.provisioner.CheckCollisions(ctx, v); err != nil {
			return vectorizer.Vectorizer{}, err
		}
		if err := s.provisioner.EnsureExtensions(ctx); err != nil {
			return vectorizer.Vectorizer{}, err
		}

		q, err := persistence.NewQueueStore(s.db, v)
		if err != nil {
			return vectorizer.Vectorizer{}, err
		}
		if err := q.Provision(ctx); err != nil {
			return vectorizer.Vectorizer{}, err
		}
		if err := s.provisioner.EnsureDestination(ctx, v); err != nil {
			return vectorizer.Vectorizer{}, err
		}
		if err := s.triggers.Install(ctx, v, source); err != nil {
			return vectorizer.Vectorizer{}, err
		}

		enqueued, err := q.Backfill(ctx)
		if err != nil {
			return vectorizer.Vectorizer{}, err
		}

		s.logger.Info("vectorizer created",
			"vectorizer", v.ID(), "name", name, "source", sourceTable, "backfilled", enqueued)
		return v, nil
	})
	if err != nil {
		return vectorizer.Vectorizer{}, fmt.Errorf("create vectorizer %q: %w", name, err)
	}
	return created, nil
}

// Remove deregisters a vectorizer and drops its queue tables and trigger.
// dropDestination also removes the destination table, view, or column.
// Idempotent against partially removed state.
func (s *VectorizerService) Remove(ctx context.Context, name string, dropDestination bool) error {
	v, err := s.store.GetByName(ctx, name)
	if err != nil {
		return err
	}

	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		ctx := database.ContextWithTx(ctx, tx)

		if err := s.triggers.Drop(ctx, v); err != nil {
			return err
		}

		q, err := persistence.NewQueueStore(s.db, v)
		if err != nil {
			return err
		}
		if err := q.Drop(ctx); err != nil {
			return err
		}

		if dropDestination {
			if err := s.provisioner.DropDestination(ctx, v); err != nil {
				return err
			}
		}

		return s.store.Delete(ctx, v.ID())
	})
	if err != nil {
		return fmt.Errorf("remove vectorizer %q: %w", name, err)
	}

	s.logger.Info("vectorizer removed", "vectorizer", v.ID(), "name", name)
	return nil
}

// Enable turns the periodic driver back on for a vectorizer.
func (s *VectorizerService) Enable(ctx context.Context, name string) error {
	return s.setEnabled(ctx, name, true)
}

// Disable pauses the periodic driver. Change capture keeps queueing work;
// nothing drains it until re-enabled.
func (s *VectorizerService) Disable(ctx context.Context, name string) error {
	return s.setEnabled(ctx, name, false)
}

func (s *VectorizerService) setEnabled(ctx context.Context, name string, enabled bool) error {
	v, err := s.store.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if v.Enabled() == enabled {
		return nil
	}
	_, err = s.store.Save(ctx, v.WithEnabled(enabled))
	return err
}

// Get returns a vectorizer by name.
func (s *VectorizerService) Get(ctx context.Context, name string) (vectorizer.Vectorizer, error) {
	return s.store.GetByName(ctx, name)
}

// List returns all registered vectorizers.
func (s *VectorizerService) List(ctx context.Context) ([]vectorizer.Vectorizer, error) {
	return s.store.Find(ctx, store.WithOrderAsc("id"))
}

// Status reports a vectorizer's queue state.
func (s *VectorizerService) Status(ctx context.Context, name string) (Status, error) {
	v, err := s.store.GetByName(ctx, name)
	if err != nil {
		return Status{}, err
	}

	q, err := persistence.NewQueueStore(s.db, v)
	if err != nil {
		return Status{}, err
	}

	pending, err := q.Depth(ctx, false)
	if err != nil {
		return Status{}, err
	}
	failedCount, err := q.FailedCount(ctx)
	if err != nil {
		return Status{}, err
	}

	return Status{Vectorizer: v, Pending: pending, Failed: failedCount}, nil
}

// QueueDepth returns the queue depth for a vectorizer, exact or bounded.
func (s *VectorizerService) QueueDepth(ctx context.Context, name string, exact bool) (int64, error) {
	v, err := s.store.GetByName(ctx, name)
	if err != nil {
		return 0, err
	}
	q, err := persistence.NewQueueStore(s.db, v)
	if err != nil {
		return 0, err
	}
	return q.Depth(ctx, exact)
}

// FailedItems lists a vectorizer's failed queue.
func (s *VectorizerService) FailedItems(ctx context.Context, name string, limit int) ([]queue.FailedItem, error) {
	v, err := s.store.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	q, err := persistence.NewQueueStore(s.db, v)
	if err != nil {
		return nil, err
	}
	return q.FailedItems(ctx, limit)
}

// fillDestinationNames derives default destination object names where the
// config leaves them blank.
func fillDestinationNames(cfg vectorizer.Config, sourceTable string) vectorizer.Config {
	dest, ok := cfg.Destination.(vectorizer.DestinationTable)
	if !ok {
		return cfg
	}
	if dest.TargetTable == "" {
		dest.TargetTable = provision.DefaultTargetTable(sourceTable)
	}
	if dest.ViewName == "" {
		dest.ViewName = provision.DefaultViewName(sourceTable)
	}
	cfg.Destination = dest
	return cfg
}
