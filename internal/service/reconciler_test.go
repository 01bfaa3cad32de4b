package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/models"
)

func TestCheckIn_ServerConfirmedSubset(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)

	f.backend.checkIn = func(indexes []int) (*models.CheckInResult, error) {
		assert.Equal(t, []int{0, 1}, indexes)
		return &models.CheckInResult{
			CheckedInAttendees: []models.CheckedInAttendee{{Index: 0}},
			TotalCheckedIn:     1,
			NewCheckIns:        1,
		}, nil
	}

	out, err := f.services.Reconciler.CheckIn(context.Background(), []int{0, 1})
	require.NoError(t, err)

	assert.Equal(t, AppliedServerConfirmed, out.Applied)
	assert.True(t, out.Ledger.Tickets[0])
	assert.False(t, out.Ledger.Tickets[1])
	assert.Equal(t, 1, out.NewCheckIns)
	assert.Equal(t, 1, out.Summary.Tickets.Entered)
	assert.Equal(t, "tok", f.backend.lastCreds.Token)
	assert.Equal(t, "E-1", f.backend.lastCreds.EventID)
	assert.Contains(t, f.publisher.subjects, models.EventAttendeesCheckedIn)
}

func TestCheckIn_ConfirmedSubsetWithLooseIndexes(t *testing.T) {
	for _, body := range []string{
		`{"checkedInAttendees":[{"attendeeIndex":1}],"newCheckIns":1}`,
		`{"checkedInAttendees":[{"index":"1"}],"newCheckIns":"1"}`,
	} {
		f := newFixture(t)
		f.loggedIn(t)
		f.scanned(t)

		f.backend.checkIn = func([]int) (*models.CheckInResult, error) {
			var result models.CheckInResult
			if err := json.Unmarshal([]byte(body), &result); err != nil {
				return nil, err
			}
			return &result, nil
		}

		out, err := f.services.Reconciler.CheckIn(context.Background(), []int{0, 1})
		require.NoError(t, err, body)
		assert.Equal(t, AppliedServerConfirmed, out.Applied, body)
		assert.False(t, out.Ledger.Tickets[0], body)
		assert.True(t, out.Ledger.Tickets[1], body)
		assert.Equal(t, 1, out.NewCheckIns, body)
	}
}

func TestCheckIn_OptimisticWithoutSubset(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)

	f.backend.checkIn = func([]int) (*models.CheckInResult, error) {
		return &models.CheckInResult{}, nil
	}

	out, err := f.services.Reconciler.CheckIn(context.Background(), []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, AppliedOptimistic, out.Applied)
	assert.False(t, out.Ledger.Tickets[0])
	assert.True(t, out.Ledger.Tickets[1])
	assert.Equal(t, 1, out.NewCheckIns)
}

func TestCheckIn_PreflightOrder(t *testing.T) {
	f := newFixture(t)

	// No session beats an empty request and missing credentials.
	_, err := f.services.Reconciler.CheckIn(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveSession))

	f.scanned(t)

	// Request validation beats missing credentials.
	_, err = f.services.Reconciler.CheckIn(context.Background(), []int{9})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownAttendee))
	_, err = f.services.Reconciler.CheckIn(context.Background(), []int{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = f.services.Reconciler.CheckIn(context.Background(), []int{0})
	assert.True(t, errors.Is(err, apperrors.ErrNotLoggedIn))

	ctx := context.Background()
	require.NoError(t, f.store.SaveToken(ctx, "tok"))
	_, err = f.services.Reconciler.CheckIn(ctx, []int{0})
	assert.True(t, errors.Is(err, apperrors.ErrNoEventSelected))

	assert.NotContains(t, f.backend.Calls(), "checkin")
}

func TestCheckIn_FailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)
	before, err := f.services.Flow.State()
	require.NoError(t, err)

	f.backend.checkIn = func([]int) (*models.CheckInResult, error) {
		return nil, apperrors.New(apperrors.ErrTimeout, "Connection timeout - Please check your internet connection")
	}

	_, err = f.services.Reconciler.CheckIn(context.Background(), []int{0})
	assert.True(t, errors.Is(err, apperrors.ErrTimeout))

	after, err := f.services.Flow.State()
	require.NoError(t, err)
	assert.Equal(t, before.Ledger, after.Ledger)
	assert.Equal(t, []string{"checkin"}, f.backend.Calls()[len(f.backend.Calls())-1:])
}

func TestAuthenticationFailureClearsStore(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)
	ctx := context.Background()

	f.backend.checkIn = func([]int) (*models.CheckInResult, error) {
		return nil, apperrors.FromResponse(apperrors.ErrAuthentication, 401, "Token inválido")
	}
	_, err := f.services.Reconciler.CheckIn(ctx, []int{0})
	assert.True(t, errors.Is(err, apperrors.ErrAuthentication))

	token, _ := f.store.Token(ctx)
	assert.Empty(t, token)
	assert.False(t, f.store.IsLoggedIn(ctx))
}

func TestEventPermissionKeepsStore(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)
	ctx := context.Background()

	f.backend.checkIn = func([]int) (*models.CheckInResult, error) {
		return nil, apperrors.FromResponse(apperrors.ErrEventPermission, 401, "Validador no autorizado para este evento")
	}
	_, err := f.services.Reconciler.CheckIn(ctx, []int{0})
	assert.True(t, errors.Is(err, apperrors.ErrEventPermission))
	assert.True(t, f.store.IsLoggedIn(ctx))
}

func TestRedeem_RefreshOverridesLocalArithmetic(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)

	f.backend.redeem = func(lines []models.RedemptionLine) (*models.RedeemResult, error) {
		return &models.RedeemResult{}, nil
	}
	// The server reports another device redeemed in parallel: 0 left, not 2.
	f.backend.sale = sale(`{"saleNumber":"V-1","attendees":[{"index":0},{"index":1}],
		"products":[{"id":"p1","precio":2000,"cantidadComprada":5,"cantidadCanjeada":5}]}`)

	out, err := f.services.Reconciler.RedeemProducts(context.Background(), []models.RedemptionLine{{ItemID: "p1", Cantidad: 1}})
	require.NoError(t, err)

	assert.Equal(t, AppliedServerRefreshed, out.Applied)
	assert.Equal(t, 0, out.Ledger.Food["p1"])
	assert.Empty(t, out.Ledger.Activities)
	assert.Equal(t, []string{"redeem-products", "sale"}, f.backend.Calls())
	assert.Contains(t, f.publisher.subjects, models.EventProductsRedeemed)

	state, err := f.services.Flow.State()
	require.NoError(t, err)
	assert.Equal(t, "E-1", state.Session.Event.ID)
}

func TestRedeem_ConfirmedLinesWhenRefreshFails(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)

	f.backend.redeem = func([]models.RedemptionLine) (*models.RedeemResult, error) {
		return &models.RedeemResult{Redemptions: []models.RedemptionLine{{ItemID: "p1", Cantidad: 2}}}, nil
	}

	out, err := f.services.Reconciler.RedeemProducts(context.Background(), []models.RedemptionLine{{ItemID: "p1", Cantidad: 1}})
	require.NoError(t, err)
	assert.Equal(t, AppliedServerConfirmed, out.Applied)
	assert.Equal(t, 1, out.Ledger.Food["p1"])
}

func TestRedeem_OptimisticWhenNothingConfirmed(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)

	f.backend.redeem = func([]models.RedemptionLine) (*models.RedeemResult, error) {
		return &models.RedeemResult{}, nil
	}

	out, err := f.services.Reconciler.RedeemActivities(context.Background(), []models.RedemptionLine{{ItemID: "a1", Cantidad: 1}})
	require.NoError(t, err)
	assert.Equal(t, AppliedOptimistic, out.Applied)
	assert.Equal(t, 0, out.Ledger.Activities["a1"])
	assert.Equal(t, 3, out.Ledger.Food["p1"])
	assert.Equal(t, 1, out.Summary.Activities.RedeemedUnits)
}

func TestRedeem_Validation(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)
	ctx := context.Background()

	_, err := f.services.Reconciler.RedeemProducts(ctx, []models.RedemptionLine{{ItemID: "p1", Cantidad: 2}, {ItemID: "p1", Cantidad: 2}})
	assert.True(t, errors.Is(err, apperrors.ErrQuantityExceeded))

	_, err = f.services.Reconciler.RedeemProducts(ctx, []models.RedemptionLine{{ItemID: "p1", Cantidad: math.MaxInt}, {ItemID: "p1", Cantidad: math.MaxInt}})
	assert.True(t, errors.Is(err, apperrors.ErrQuantityExceeded))

	_, err = f.services.Reconciler.RedeemProducts(ctx, []models.RedemptionLine{{ItemID: "a1", Cantidad: 1}})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownItem))

	_, err = f.services.Reconciler.RedeemProducts(ctx, []models.RedemptionLine{{ItemID: "p1", Cantidad: 0}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = f.services.Reconciler.RedeemActivities(ctx, nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	for _, call := range f.backend.Calls() {
		assert.NotContains(t, call, "redeem")
	}
}

func TestRedeem_RejectedKeepsLedger(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)

	f.backend.redeem = func([]models.RedemptionLine) (*models.RedeemResult, error) {
		return nil, apperrors.FromResponse(apperrors.ErrRejected, 400, "Cantidad excede lo disponible")
	}

	_, err := f.services.Reconciler.RedeemProducts(context.Background(), []models.RedemptionLine{{ItemID: "p1", Cantidad: 1}})
	assert.True(t, errors.Is(err, apperrors.ErrRejected))
	assert.Equal(t, "Cantidad excede lo disponible", apperrors.Message(err))

	state, err := f.services.Flow.State()
	require.NoError(t, err)
	assert.Equal(t, 3, state.Ledger.Food["p1"])
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.scanned(t)
	f.publisher.fail = true

	f.backend.checkIn = func([]int) (*models.CheckInResult, error) {
		return &models.CheckInResult{NewCheckIns: 1}, nil
	}
	_, err := f.services.Reconciler.CheckIn(context.Background(), []int{0})
	assert.NoError(t, err)
}
