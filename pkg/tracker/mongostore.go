package tracker

import (
	"context"
	"time"

	"github.com/buspulse/buspulse/pkg/database"
	"github.com/buspulse/buspulse/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists engine records into the global Mongo instance.
type MongoStore struct{}

func NewMongoStore() *MongoStore {
	return &MongoStore{}
}

func (s *MongoStore) AppendPosition(ctx context.Context, position fleet.Position) error {
	collection := database.GetCollection("location_history")
	_, err := collection.InsertOne(ctx, position)

	return err
}

func (s *MongoStore) AppendGeofenceEvent(ctx context.Context, event fleet.GeofenceEvent) error {
	collection := database.GetCollection("geofence_events")
	_, err := collection.InsertOne(ctx, event)

	return err
}

func (s *MongoStore) AppendTripPoint(ctx context.Context, point fleet.TripPoint) error {
	collection := database.GetCollection("trip_points")
	_, err := collection.InsertOne(ctx, point)

	return err
}

func (s *MongoStore) PutTrip(ctx context.Context, trip *fleet.Trip) error {
	collection := database.GetCollection("trips")

	filter := bson.M{"primaryidentifier": trip.PrimaryIdentifier}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, trip, opts)

	return err
}

func (s *MongoStore) GetTrip(ctx context.Context, id string) (*fleet.Trip, error) {
	collection := database.GetCollection("trips")

	var trip fleet.Trip
	err := collection.FindOne(ctx, bson.M{"primaryidentifier": id}).Decode(&trip)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &trip, nil
}

func (s *MongoStore) GetActiveTrip(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	collection := database.GetCollection("trips")

	filter := bson.M{
		"vehicleid": vehicleID,
		"status":    fleet.TripStatusInProgress,
	}

	var trip fleet.Trip
	err := collection.FindOne(ctx, filter).Decode(&trip)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &trip, nil
}

func (s *MongoStore) GetLatestTripPoint(ctx context.Context, tripID string) (*fleet.TripPoint, error) {
	collection := database.GetCollection("trip_points")

	opts := options.FindOne().SetSort(bson.D{{Key: "sequence", Value: -1}})

	var point fleet.TripPoint
	err := collection.FindOne(ctx, bson.M{"tripid": tripID}, opts).Decode(&point)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &point, nil
}

func (s *MongoStore) GetActiveGeofences(ctx context.Context) ([]fleet.Geofence, error) {
	collection := database.GetCollection("geofences")

	cursor, err := collection.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, err
	}

	var geofences []fleet.Geofence
	if err := cursor.All(ctx, &geofences); err != nil {
		return nil, err
	}

	return geofences, nil
}

// GetLatestGeofenceEvents returns the most recent event for every
// (vehicle, geofence) pair, used to rebuild membership state on startup.
func (s *MongoStore) GetLatestGeofenceEvents(ctx context.Context) ([]fleet.GeofenceEvent, error) {
	collection := database.GetCollection("geofence_events")

	aggregation := mongo.Pipeline{
		bson.D{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "vehicleid", Value: "$vehicleid"},
				{Key: "geofenceid", Value: "$geofenceid"},
			}},
			{Key: "latest", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$latest"}}}},
	}

	cursor, err := collection.Aggregate(ctx, aggregation)
	if err != nil {
		return nil, err
	}

	var events []fleet.GeofenceEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (s *MongoStore) GetAssignedVehicle(ctx context.Context, observerID string) (*fleet.Vehicle, error) {
	collection := database.GetCollection("vehicles")

	var vehicle fleet.Vehicle
	err := collection.FindOne(ctx, bson.M{"assignedobservers": observerID}).Decode(&vehicle)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &vehicle, nil
}

func (s *MongoStore) GetLocationHistory(ctx context.Context, vehicleID string, since time.Time) ([]fleet.Position, error) {
	collection := database.GetCollection("location_history")

	filter := bson.M{
		"vehicleid":  vehicleID,
		"observedat": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "observedat", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var positions []fleet.Position
	if err := cursor.All(ctx, &positions); err != nil {
		return nil, err
	}

	return positions, nil
}
