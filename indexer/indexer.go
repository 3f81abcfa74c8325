package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"growspace/core/events"
	"growspace/observability/metrics"
)

// Open connects to the index store. postgres:// and postgresql:// URLs select
// PostgreSQL; anything else is treated as a SQLite DSN. Tables are migrated
// before returning.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("indexer: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer persists committed ledger events for history queries.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.GrowspaceMetrics
}

// New returns an indexer writing to db.
func New(db *gorm.DB, logger *slog.Logger, m *metrics.GrowspaceMetrics) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger.With(slog.String("component", "indexer")), metrics: m}
}

// Run consumes feed until ctx is done. When the feed drops the subscription
// because the indexer fell behind, Run resubscribes from the last sequence it
// handled so the retained history is replayed. Malformed notifications are
// logged and skipped.
func (ix *Indexer) Run(ctx context.Context, feed *events.Feed) error {
	var last uint64
	for {
		ix.follow(ctx, feed, &last)
		if ctx.Err() != nil {
			return nil
		}
		ix.logger.Warn("event subscription dropped, resuming", slog.Uint64("sequence", last))
	}
}

// follow drains one subscription and returns once it closes or ctx is done.
func (ix *Indexer) follow(ctx context.Context, feed *events.Feed, last *uint64) {
	cursor := ""
	if *last > 0 {
		cursor = strconv.FormatUint(*last, 10)
	}
	updates, cancel, backlog := feed.Subscribe(ctx, cursor)
	defer cancel()
	for _, note := range backlog {
		ix.accept(ctx, note, last)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case note, ok := <-updates:
			if !ok {
				return
			}
			ix.accept(ctx, note, last)
		}
	}
}

func (ix *Indexer) accept(ctx context.Context, note events.Notification, last *uint64) {
	if note.Sequence <= *last {
		return
	}
	if *last > 0 && note.Sequence > *last+1 {
		ix.logger.Error("event history gap",
			slog.Uint64("after", *last),
			slog.Uint64("resumed_at", note.Sequence))
	}
	*last = note.Sequence
	ix.handle(ctx, note)
}

func (ix *Indexer) handle(ctx context.Context, note events.Notification) {
	if note.Event == nil {
		return
	}
	err := ix.Index(ctx, note)
	switch {
	case errors.Is(err, errUnindexed):
		return
	case err != nil:
		ix.metrics.ObserveIndexed(note.Event.Type, "error")
		ix.logger.Error("index event failed",
			slog.String("type", note.Event.Type),
			slog.Uint64("sequence", note.Sequence),
			slog.Any("error", err))
	default:
		ix.metrics.ObserveIndexed(note.Event.Type, "ok")
	}
}

var errUnindexed = errors.New("indexer: event type not indexed")

// Index stores a single notification.
func (ix *Indexer) Index(ctx context.Context, note events.Notification) error {
	evt := note.Event
	if evt == nil {
		return errUnindexed
	}
	attrs := attributes(evt.Attributes)
	var row interface{}
	switch evt.Type {
	case events.TypeVoterCredited:
		row = &VoterCredit{
			ID:                    uuid.New(),
			Sequence:              note.Sequence,
			Voter:                 attrs.text("voter"),
			Submitter:             attrs.text("submitter"),
			LedgerID:              attrs.u64("ledger_id"),
			BlockID:               attrs.u64("block_id"),
			PreviousCreditedBlock: attrs.u64("previous_credited_block"),
			Credit:                attrs.u64("credit"),
			FinalHash:             attrs.text("final_hash"),
		}
	case events.TypePeriodRolledOver:
		row = &PeriodRollover{
			ID:             uuid.New(),
			Sequence:       note.Sequence,
			NewPeriod:      attrs.u64("new_period"),
			Timestamp:      attrs.i64("timestamp"),
			PreviousCredit: attrs.u64("previous_credit"),
			PreviousDebit:  attrs.u64("previous_debit"),
		}
	case events.TypeRewardClaimed:
		row = &RewardClaim{
			ID:       uuid.New(),
			Sequence: note.Sequence,
			Owner:    attrs.text("owner"),
			Period:   attrs.u64("period"),
			Redeemed: attrs.u64("redeemed"),
			Reward:   attrs.text("reward"),
		}
	default:
		return errUnindexed
	}
	if attrs.err != nil {
		return fmt.Errorf("%s: %w", evt.Type, attrs.err)
	}
	return ix.db.WithContext(ctx).Create(row).Error
}

// CreditsByVoter lists the credits awarded to voter, oldest first.
func (ix *Indexer) CreditsByVoter(ctx context.Context, voter string, limit int) ([]VoterCredit, error) {
	var out []VoterCredit
	query := ix.db.WithContext(ctx).Where("voter = ?", voter).Order("sequence ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Rollovers lists period rollovers, oldest first.
func (ix *Indexer) Rollovers(ctx context.Context) ([]PeriodRollover, error) {
	var out []PeriodRollover
	if err := ix.db.WithContext(ctx).Order("new_period ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimsByOwner lists the rewards paid to owner, oldest first.
func (ix *Indexer) ClaimsByOwner(ctx context.Context, owner string) ([]RewardClaim, error) {
	var out []RewardClaim
	if err := ix.db.WithContext(ctx).Where("owner = ?", owner).Order("period ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// attributeReader decodes event attributes, keeping the first parse error.
type attributeReader struct {
	values map[string]string
	err    error
}

func attributes(values map[string]string) *attributeReader {
	return &attributeReader{values: values}
}

func (a *attributeReader) text(key string) string {
	value, ok := a.values[key]
	if !ok && a.err == nil {
		a.err = fmt.Errorf("missing attribute %q", key)
	}
	return value
}

func (a *attributeReader) u64(key string) uint64 {
	raw := a.text(key)
	if a.err != nil {
		return 0
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("attribute %q: %w", key, err)
	}
	return value
}

func (a *attributeReader) i64(key string) int64 {
	raw := a.text(key)
	if a.err != nil {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("attribute %q: %w", key, err)
	}
	return value
}
