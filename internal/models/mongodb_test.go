package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

// sentCommand returns the first command the client issued since the last clear.
func sentCommand(mt *mtest.T, name string) bson.Raw {
	mt.Helper()
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt, "no %s command was sent", name)
	require.Equal(mt, name, evt.CommandName)
	return evt.Command
}

func intAt(mt *mtest.T, doc bson.Raw, path ...string) int64 {
	mt.Helper()
	v, err := doc.LookupErr(path...)
	require.NoError(mt, err, "missing %v", path)
	switch v.Type {
	case bson.TypeInt32:
		return int64(v.Int32())
	case bson.TypeInt64:
		return v.Int64()
	}
	mt.Fatalf("%v is %s, not an integer", path, v.Type)
	return 0
}

// keysOf lists the top-level keys of the document at path.
func keysOf(mt *mtest.T, doc bson.Raw, path ...string) []string {
	mt.Helper()
	v, err := doc.LookupErr(path...)
	require.NoError(mt, err, "missing %v", path)
	elems, err := v.Document().Elements()
	require.NoError(mt, err)
	keys := make([]string, 0, len(elems))
	for _, e := range elems {
		keys = append(keys, e.Key())
	}
	return keys
}

func TestReserveStock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("enough stock", func(mt *mtest.T) {
		db := &MongoDB{Products: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		mt.ClearEvents()
		require.NoError(mt, db.ReserveStock(ctx, id, 2))

		cmd := sentCommand(mt, "update")
		assert.Equal(mt, id, cmd.Lookup("updates", "0", "q", "_id").ObjectID())
		assert.Equal(mt, int64(2), intAt(mt, cmd, "updates", "0", "q", "stock", "$gte"))
		assert.Equal(mt, []string{"$inc"}, keysOf(mt, cmd, "updates", "0", "u"))
		assert.Equal(mt, int64(-2), intAt(mt, cmd, "updates", "0", "u", "$inc", "stock"))
		assert.Nil(mt, mt.GetStartedEvent(), "reservation must be a single update")
	})

	mt.Run("short on stock", func(mt *mtest.T) {
		db := &MongoDB{Products: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "name", Value: "Mango Lassi"},
			}),
		)
		mt.ClearEvents()
		err := db.ReserveStock(ctx, id, 2)
		require.ErrorIs(mt, err, ErrInsufficientStock)
		assert.Contains(mt, err.Error(), "Mango Lassi")

		cmd := sentCommand(mt, "update")
		assert.Equal(mt, int64(2), intAt(mt, cmd, "updates", "0", "q", "stock", "$gte"))
		sentCommand(mt, "find")
	})

	mt.Run("missing product", func(mt *mtest.T) {
		db := &MongoDB{Products: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)
		err := db.ReserveStock(ctx, primitive.NewObjectID(), 1)
		require.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestAdjustStock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("applied", func(mt *mtest.T) {
		db := &MongoDB{Products: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		mt.ClearEvents()
		require.NoError(mt, db.AdjustStock(ctx, id, -3))

		cmd := sentCommand(mt, "update")
		assert.Equal(mt, []string{"_id"}, keysOf(mt, cmd, "updates", "0", "q"))
		assert.Equal(mt, id, cmd.Lookup("updates", "0", "q", "_id").ObjectID())
		assert.Equal(mt, []string{"$inc"}, keysOf(mt, cmd, "updates", "0", "u"))
		assert.Equal(mt, int64(-3), intAt(mt, cmd, "updates", "0", "u", "$inc", "stock"))
		assert.Nil(mt, mt.GetStartedEvent(), "stock is adjusted without a prior read")
	})

	mt.Run("no such product", func(mt *mtest.T) {
		db := &MongoDB{Products: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		require.ErrorIs(mt, db.AdjustStock(ctx, primitive.NewObjectID(), 3), ErrNotFound)
	})
}

func TestTransitionOrderStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("matches expected status", func(mt *mtest.T) {
		db := &MongoDB{Orders: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "status", Value: string(StatusCancelled)},
		}}))
		mt.ClearEvents()
		o, err := db.TransitionOrderStatus(ctx, id, StatusPreparing, StatusCancelled)
		require.NoError(mt, err)
		assert.Equal(mt, StatusCancelled, o.Status)

		cmd := sentCommand(mt, "findAndModify")
		assert.Equal(mt, id, cmd.Lookup("query", "_id").ObjectID())
		assert.Equal(mt, "Preparing", cmd.Lookup("query", "status").StringValue())
		assert.Equal(mt, "Cancelled", cmd.Lookup("update", "$set", "status").StringValue())
	})

	mt.Run("status moved on", func(mt *mtest.T) {
		db := &MongoDB{Orders: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "status", Value: string(StatusShipped)},
			}),
		)
		_, err := db.TransitionOrderStatus(ctx, id, StatusPreparing, StatusCancelled)
		require.ErrorIs(mt, err, ErrInvalidTransition)
		assert.Contains(mt, err.Error(), "Shipped")
	})
}

func TestCoupons(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("unknown code", func(mt *mtest.T) {
		db := &MongoDB{Coupons: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))
		_, err := db.GetCouponByCode(ctx, " verano ")
		require.ErrorIs(mt, err, ErrNotFound)
		assert.Contains(mt, err.Error(), "VERANO")
	})

	mt.Run("duplicate code", func(mt *mtest.T) {
		db := &MongoDB{Coupons: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		err := db.InsertCoupon(ctx, &Coupon{Code: "verano2025", DiscountPercentage: 10})
		require.ErrorIs(mt, err, ErrDuplicate)
	})
}
