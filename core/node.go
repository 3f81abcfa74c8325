package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"growspace/core/events"
	ledgerstate "growspace/core/state"
	"growspace/core/types"
	"growspace/native/growspace"
	"growspace/observability/metrics"
	"growspace/storage"
	"growspace/storage/trie"
)

var headKey = []byte("growspace/state/root")

// ErrNodeClosed is returned by operations issued after Close.
var ErrNodeClosed = errors.New("node: closed")

type storedHead struct {
	Root   common.Hash
	Height uint64
}

// Options configures a Node. Zero values select defaults.
type Options struct {
	Params  *growspace.Params
	Now     func() int64
	Logger  *slog.Logger
	Metrics *metrics.GrowspaceMetrics
}

// Node owns the state trie and runs every ledger operation as a serialized,
// all-or-nothing transaction. Events raised by a transaction are published to
// the feed only after its state has been committed.
type Node struct {
	db      storage.Database
	trie    *trie.Trie
	state   *ledgerstate.Manager
	engine  *growspace.Engine
	feed    *events.Feed
	logger  *slog.Logger
	metrics *metrics.GrowspaceMetrics
	tracer  trace.Tracer

	mu     sync.Mutex
	height uint64
	closed bool
}

// NewNode opens the state committed in db, or an empty state when db is new.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	head, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if head.Root != (common.Hash{}) {
		root = head.Root.Bytes()
	}
	stateTrie, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("node: open state at %s: %w", head.Root, err)
	}

	engine := growspace.NewEngine()
	state := ledgerstate.NewManager(stateTrie)
	engine.SetState(state)
	if opts.Params != nil {
		if err := engine.SetParams(*opts.Params); err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
	}
	if opts.Now != nil {
		engine.SetNowFunc(opts.Now)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Node{
		db:      db,
		trie:    stateTrie,
		state:   state,
		engine:  engine,
		feed:    events.NewFeed(),
		logger:  logger.With(slog.String("component", "node")),
		metrics: opts.Metrics,
		tracer:  otel.Tracer("growspace/core"),
		height:  head.Height,
	}
	if treasury, ok, err := state.GrowspaceTreasury(); err == nil && ok {
		n.metrics.SetCurrentPeriod(treasury.CurrentPeriod)
	}
	return n, nil
}

func loadHead(db storage.Database) (storedHead, error) {
	var head storedHead
	data, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return head, nil
	}
	if err != nil {
		return head, fmt.Errorf("node: load head: %w", err)
	}
	if err := rlp.DecodeBytes(data, &head); err != nil {
		return head, fmt.Errorf("node: decode head: %w", err)
	}
	return head, nil
}

// Events exposes the feed of committed events.
func (n *Node) Events() *events.Feed { return n.feed }

// Params returns the engine parameters in force.
func (n *Node) Params() growspace.Params { return n.engine.Params() }

// Height returns the number of committed transactions.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// StateRoot returns the last committed state root.
func (n *Node) StateRoot() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root()
}

// Close releases the node. The database is owned by the caller.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

// execute runs fn as one transaction: on error the trie is reset to the last
// committed root and buffered events are dropped, on success the new root is
// committed and the events are published in emission order.
func (n *Node) execute(ctx context.Context, operation string, fn func(*growspace.Engine) error, attrs ...attribute.KeyValue) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := n.tracer.Start(ctx, "growspace."+operation, trace.WithAttributes(attrs...))
	defer span.End()
	start := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}

	buffer := &events.Buffer{}
	n.engine.SetEmitter(buffer)
	defer n.engine.SetEmitter(nil)

	parent := n.trie.Root()
	err := fn(n.engine)
	if err == nil {
		err = n.commit(parent)
	}
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if resetErr := n.trie.Reset(parent); resetErr != nil {
			n.logger.Error("state reset failed", slog.String("operation", operation), slog.Any("error", resetErr))
			err = errors.Join(err, resetErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.metrics.ObserveTransaction(operation, Outcome(err), elapsed)
		n.logger.Warn("transaction rejected",
			slog.String("operation", operation),
			slog.String("reason", Outcome(err)),
			slog.Any("error", err))
		return err
	}

	n.metrics.ObserveTransaction(operation, "ok", elapsed)
	n.logger.Info("transaction committed",
		slog.String("operation", operation),
		slog.Uint64("height", n.height),
		slog.String("root", n.trie.Root().Hex()),
		slog.Int("events", buffer.Len()))
	for _, evt := range buffer.Events() {
		if rolled, ok := evt.(events.PeriodRolledOver); ok {
			n.metrics.ObserveRollover(rolled.NewPeriod)
		}
		n.feed.Emit(evt)
	}
	return nil
}

func (n *Node) commit(parent common.Hash) error {
	height := n.height + 1
	root, err := n.trie.Commit(parent, height)
	if err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(&storedHead{Root: root, Height: height})
	if err != nil {
		return err
	}
	if err := n.db.Put(headKey, encoded); err != nil {
		return fmt.Errorf("persist head: %w", err)
	}
	n.height = height
	return nil
}

// Outcome labels an operation error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, growspace.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, growspace.ErrPeriodNotClosed):
		return "period_not_closed"
	case errors.Is(err, growspace.ErrNoRedeemableCredit):
		return "no_redeemable_credit"
	case errors.Is(err, growspace.ErrFunding):
		return "funding"
	case errors.Is(err, growspace.ErrGrowth):
		return "growth"
	case errors.Is(err, growspace.ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, growspace.ErrTreasuryMissing), errors.Is(err, growspace.ErrLedgerMissing):
		return "not_found"
	case errors.Is(err, growspace.ErrTreasuryExists), errors.Is(err, growspace.ErrLedgerExists):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// InitializeTreasury creates and funds the reward treasury.
func (n *Node) InitializeTreasury(ctx context.Context, admin types.Identity, amount *uint256.Int) (*growspace.Treasury, error) {
	var out *growspace.Treasury
	err := n.execute(ctx, "initialize_treasury", func(engine *growspace.Engine) error {
		treasury, err := engine.InitializeTreasury(admin, amount)
		out = treasury
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.SetCurrentPeriod(out.CurrentPeriod)
	return out, nil
}

// InitializeLedgerRecord creates an empty ledger record paid for by payer.
func (n *Node) InitializeLedgerRecord(ctx context.Context, ledgerID uint64, payer types.Identity) (*growspace.LedgerRecord, error) {
	var out *growspace.LedgerRecord
	err := n.execute(ctx, "initialize_ledger", func(engine *growspace.Engine) error {
		record, err := engine.InitializeLedgerRecord(ledgerID, payer)
		out = record
		return err
	}, attribute.Int64("growspace.ledger_id", int64(ledgerID)))
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveRentPrepaid(out.Deposit.Float64())
	return out, nil
}

// AppendVote records a vote and credits the previous block's majority.
func (n *Node) AppendVote(ctx context.Context, req growspace.AppendVoteRequest) (*growspace.AppendVoteResult, error) {
	var out *growspace.AppendVoteResult
	err := n.execute(ctx, "append_vote", func(engine *growspace.Engine) error {
		res, err := engine.AppendVote(req)
		out = res
		return err
	},
		attribute.Int64("growspace.ledger_id", int64(req.LedgerID)),
		attribute.Int64("growspace.block_id", int64(req.BlockID)),
		attribute.String("growspace.submitter", req.Submitter.String()))
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveVote(out.BytesAdded, out.RentPaid.Float64(), len(out.Credited))
	return out, nil
}

// ClaimReward redeems credit for a closed period.
func (n *Node) ClaimReward(ctx context.Context, req growspace.ClaimRequest) (*growspace.ClaimResult, error) {
	var out *growspace.ClaimResult
	err := n.execute(ctx, "claim_reward", func(engine *growspace.Engine) error {
		res, err := engine.ClaimReward(req)
		out = res
		return err
	},
		attribute.String("growspace.owner", req.Owner.String()),
		attribute.Int64("growspace.period", int64(req.Period)))
	if err != nil {
		n.metrics.ObserveClaim(Outcome(err), 0)
		return nil, err
	}
	n.metrics.ObserveClaim("ok", out.Reward.Float64())
	return out, nil
}
