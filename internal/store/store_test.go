package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nof0-core/internal/model"
	"nof0-core/pkg/journal"
	"nof0-core/pkg/portfolio"
)

// fakeTradesModel and fakeSnapshotsModel let Recover/MirrorCycle be
// exercised without a real database, mirroring the approach
// scheduler_test.go takes for CycleRunner.
type fakeTradesModel struct {
	model.TradesModel
	since  []model.Trades
	insert []model.Trades
}

func (f *fakeTradesModel) Insert(ctx context.Context, row *model.Trades) error {
	f.insert = append(f.insert, *row)
	return nil
}

func (f *fakeTradesModel) SinceTimestamp(ctx context.Context, modelID string, since time.Time) ([]model.Trades, error) {
	return f.since, nil
}

type fakeSnapshotsModel struct {
	model.PortfolioSnapshotsModel
	latest  *model.PortfolioSnapshots
	findErr error
	insert  []model.PortfolioSnapshots
}

func (f *fakeSnapshotsModel) Insert(ctx context.Context, row *model.PortfolioSnapshots) error {
	f.insert = append(f.insert, *row)
	return nil
}

func (f *fakeSnapshotsModel) Latest(ctx context.Context, modelID string) (*model.PortfolioSnapshots, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.latest, nil
}

func TestRecoverWithNoCheckpointReplaysWholeLog(t *testing.T) {
	trades := &fakeTradesModel{since: []model.Trades{
		{ModelID: "m1", Symbol: "BTC", Side: "long", Signal: "buy_to_enter", Price: 100, Quantity: 1,
			Leverage: 2, Status: "success", OccurredAt: time.Unix(1, 0)},
	}}
	snaps := &fakeSnapshotsModel{findErr: model.ErrNotFound}

	s := New(nil, trades, snaps, nil, nil, nil, nil, nil).(*postgresStore)
	snap, err := s.Recover(context.Background(), "m1", 10000)
	require.NoError(t, err)
	assert.Equal(t, "m1", snap.ModelID)
	assert.Len(t, snap.Positions, 1)
	assert.Less(t, snap.Cash, 10000.0)
}

func TestRecoverWithCheckpointOnlyReplaysTradesSinceIt(t *testing.T) {
	positionsJSON, err := json.Marshal([]portfolio.Position{{Symbol: "ETH", Side: portfolio.SideLong, Qty: 1, AvgPrice: 50, Leverage: 1}})
	require.NoError(t, err)

	checkpoint := time.Unix(100, 0)
	snaps := &fakeSnapshotsModel{latest: &model.PortfolioSnapshots{
		ModelID: "m1", Cash: 9000, InitialCapital: 10000, RealizedPnl: 50,
		PositionsJSON: positionsJSON, RecordedAt: checkpoint,
	}}
	trades := &fakeTradesModel{since: nil}

	s := New(nil, trades, snaps, nil, nil, nil, nil, nil).(*postgresStore)
	snap, err := s.Recover(context.Background(), "m1", 10000)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, snap.Cash)
	assert.Equal(t, 50.0, snap.RealizedPnl)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "ETH", snap.Positions[0].Symbol)
}

func TestRecordTradeRoundTripsThroughRowMapping(t *testing.T) {
	trades := &fakeTradesModel{}
	s := New(nil, trades, nil, nil, nil, nil, nil, nil).(*postgresStore)

	trade := portfolio.Trade{
		ModelID: "m1", Symbol: "BTC", Side: portfolio.SideLong, Signal: portfolio.SignalBuyToEnter,
		Price: 100, Quantity: 2, Leverage: 3, Pnl: 5, Fee: 1, Status: portfolio.TradeSuccess,
		Timestamp: time.Unix(5, 0),
	}
	require.NoError(t, s.RecordTrade(context.Background(), trade))
	require.Len(t, trades.insert, 1)
	row := trades.insert[0]
	assert.Equal(t, "long", row.Side)
	assert.Equal(t, "buy_to_enter", row.Signal)
	assert.Equal(t, int64(3), row.Leverage)

	back := fromTradesRow(row)
	assert.Equal(t, trade.Side, back.Side)
	assert.Equal(t, trade.Signal, back.Signal)
	assert.Equal(t, trade.Leverage, back.Leverage)
}

func TestModelConfigRowMappingRoundTrips(t *testing.T) {
	cfg := ModelConfig{
		ID: "m1", Name: "n", Provider: "p", BuyPrompt: "buy", SellPrompt: "sell",
		DefaultLeverage: 5, AutoBuyEnabled: true, AutoSellEnabled: false,
		MaxPositions: 3, BuyBatchSize: 2, TradingFrequencyMinutes: 15,
		InitialCapital: 10000, Enabled: true,
	}
	row := toModelsRow(cfg)
	back := fromModelsRow(row)
	assert.Equal(t, cfg, back)
}

type fakeConvosModel struct {
	model.ConversationsModel
	nextID int64
}

func (f *fakeConvosModel) Insert(ctx context.Context, row *model.Conversations) (int64, error) {
	f.nextID++
	return f.nextID, nil
}

type fakeConvoMsgsModel struct {
	model.ConversationMessagesModel
	inserted []model.ConversationMessages
}

func (f *fakeConvoMsgsModel) Insert(ctx context.Context, row *model.ConversationMessages) error {
	f.inserted = append(f.inserted, *row)
	return nil
}

type fakeCyclesModel struct {
	model.DecisionCyclesModel
	inserted []model.DecisionCycles
}

func (f *fakeCyclesModel) Insert(ctx context.Context, row *model.DecisionCycles) error {
	f.inserted = append(f.inserted, *row)
	return nil
}

func TestMirrorCycleWritesConversationMessagesAndCycleRow(t *testing.T) {
	convos := &fakeConvosModel{}
	msgs := &fakeConvoMsgsModel{}
	cycles := &fakeCyclesModel{}
	s := New(nil, nil, nil, convos, msgs, cycles, nil, nil).(*postgresStore)

	rec := &journal.CycleRecord{
		ModelID: "m1", Pass: "buy", Timestamp: time.Unix(1, 0),
		SystemMessage: "sys", UserMessage: "usr", ResponseText: "resp", Success: true,
	}
	s.MirrorCycle(rec)

	require.Len(t, msgs.inserted, 3)
	assert.Equal(t, "system", msgs.inserted[0].Role)
	assert.Equal(t, "user", msgs.inserted[1].Role)
	assert.Equal(t, "assistant", msgs.inserted[2].Role)
	require.Len(t, cycles.inserted, 1)
	assert.True(t, cycles.inserted[0].Success)
	assert.Equal(t, "m1", cycles.inserted[0].ModelID)
}

func TestNoopStoreRecoverSeedsFromInitialCapital(t *testing.T) {
	s := NewNoop()
	snap, err := s.Recover(context.Background(), "m1", 5000)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, snap.Cash)
	assert.Equal(t, 5000.0, snap.InitialCapital)
}

func TestNoopStoreGetModelReturnsNotFound(t *testing.T) {
	s := NewNoop()
	_, err := s.GetModel(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrNotFound)
}
