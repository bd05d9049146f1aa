package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/testutil"
)

func TestReconcile_AutoHide(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	svc := NewHiddenAssetService(repo, 2, zap.NewNop())

	assets := []entities.Asset{
		testutil.CreateTestAsset(testutil.AssetWithToken(testutil.PEPEAddress, "PEPE"), testutil.AssetWithValue(0.50)),
		testutil.CreateTestAsset(testutil.AssetWithToken(testutil.LINKAddress, "LINK"), testutil.AssetWithValue(1452)),
	}

	overlay, err := svc.Reconcile(context.Background(), assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pepeKey := entities.AssetKey{WalletID: 1, TokenAddress: testutil.PEPEAddress}
	if reason, ok := overlay[pepeKey]; !ok || reason != entities.HideReasonAuto {
		t.Errorf("expected PEPE auto-hidden, got %v", overlay)
	}
	linkKey := entities.AssetKey{WalletID: 1, TokenAddress: testutil.LINKAddress}
	if _, ok := overlay[linkKey]; ok {
		t.Error("LINK above threshold must stay visible")
	}

	if entry, ok := repo.Entries[pepeKey]; !ok || entry.Reason != entities.HideReasonAuto {
		t.Errorf("expected persisted auto entry, got %v", repo.Entries)
	}
}

func TestReconcile_BoundaryValue(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	svc := NewHiddenAssetService(repo, 2, zap.NewNop())

	// Exactly at the threshold stays visible: the rule is strictly below.
	assets := []entities.Asset{
		testutil.CreateTestAsset(testutil.AssetWithValue(2.00)),
	}

	overlay, err := svc.Reconcile(context.Background(), assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overlay) != 0 {
		t.Errorf("asset at threshold must not be hidden, got %v", overlay)
	}
}

func TestReconcile_AutoUnhide(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	autoEntry := testutil.CreateTestHiddenEntry()
	repo.Entries[autoEntry.Key()] = autoEntry

	svc := NewHiddenAssetService(repo, 2, zap.NewNop())

	// The asset recovered from dust to $50.
	assets := []entities.Asset{
		testutil.CreateTestAsset(testutil.AssetWithToken(testutil.PEPEAddress, "PEPE"), testutil.AssetWithValue(50)),
	}

	overlay, err := svc.Reconcile(context.Background(), assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := overlay[autoEntry.Key()]; ok {
		t.Error("recovered auto-hidden asset must be unhidden")
	}
	if _, ok := repo.Entries[autoEntry.Key()]; ok {
		t.Error("auto entry must be deleted from the overlay store")
	}
}

func TestReconcile_ManualNeverAutoRemoved(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	manualEntry := testutil.CreateTestHiddenEntry(
		testutil.HiddenWithToken(testutil.LINKAddress),
		testutil.HiddenWithReason(entities.HideReasonManual),
	)
	repo.Entries[manualEntry.Key()] = manualEntry

	svc := NewHiddenAssetService(repo, 2, zap.NewNop())

	// Value far above threshold; the manual hide must survive anyway.
	assets := []entities.Asset{
		testutil.CreateTestAsset(testutil.AssetWithToken(testutil.LINKAddress, "LINK"), testutil.AssetWithValue(5000)),
	}

	overlay, err := svc.Reconcile(context.Background(), assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reason, ok := overlay[manualEntry.Key()]; !ok || reason != entities.HideReasonManual {
		t.Errorf("manual hide must survive reconciliation, got %v", overlay)
	}
	if _, ok := repo.Entries[manualEntry.Key()]; !ok {
		t.Error("manual entry must remain persisted")
	}
}

func TestReconcile_UnhiddenDustIsRehidden(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	autoEntry := testutil.CreateTestHiddenEntry()
	repo.Entries[autoEntry.Key()] = autoEntry

	svc := NewHiddenAssetService(repo, 2, zap.NewNop())
	ctx := context.Background()

	// Unhiding drops the entry entirely. As long as the asset stays below
	// the threshold, the next reconciliation hides it again; unhiding dust
	// only sticks once the value crosses the threshold.
	if err := svc.Unhide(ctx, autoEntry.WalletID, autoEntry.TokenAddress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.Entries[autoEntry.Key()]; ok {
		t.Fatal("expected entry removed by unhide")
	}

	assets := []entities.Asset{
		testutil.CreateTestAsset(testutil.AssetWithToken(testutil.PEPEAddress, "PEPE"), testutil.AssetWithValue(0.50)),
	}
	overlay, err := svc.Reconcile(ctx, assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reason, ok := overlay[autoEntry.Key()]; !ok || reason != entities.HideReasonAuto {
		t.Errorf("expected still-dust asset re-hidden as auto, got %v", overlay)
	}
}

func TestReconcile_StorageFailure(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	repo.GetAllFunc = func(ctx context.Context) ([]entities.HiddenAssetEntry, error) {
		return nil, errors.New("connection lost")
	}

	svc := NewHiddenAssetService(repo, 2, zap.NewNop())

	_, err := svc.Reconcile(context.Background(), []entities.Asset{testutil.CreateTestAsset()})
	if !errors.Is(err, entities.ErrStorageFailure) {
		t.Errorf("expected ErrStorageFailure, got %v", err)
	}
}

func TestHideUnhide(t *testing.T) {
	repo := testutil.NewMockHiddenAssetRepository()
	svc := NewHiddenAssetService(repo, 2, zap.NewNop())
	ctx := context.Background()

	mixedCase := "0x514910771AF9Ca656af840dff83E8264EcF986CA"
	key := entities.AssetKey{WalletID: 3, TokenAddress: testutil.LINKAddress}

	if err := svc.Hide(ctx, 3, mixedCase); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, ok := repo.Entries[key]
	if !ok {
		t.Fatalf("expected entry under lowercased key, got %v", repo.Entries)
	}
	if entry.Reason != entities.HideReasonManual {
		t.Errorf("expected manual reason, got %s", entry.Reason)
	}

	if err := svc.Unhide(ctx, 3, mixedCase); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.Entries[key]; ok {
		t.Error("expected entry removed")
	}
}

func TestThresholdDefault(t *testing.T) {
	svc := NewHiddenAssetService(testutil.NewMockHiddenAssetRepository(), 0, zap.NewNop())
	if svc.Threshold() != 2 {
		t.Errorf("expected default threshold 2, got %v", svc.Threshold())
	}
}
