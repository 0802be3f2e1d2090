package routes

import (
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/redis_client"
	"github.com/buspulse/buspulse/pkg/tracker"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
)

var positionQueue rmq.Queue
var enginePipeline *tracker.Pipeline
var liveStateCache *cache.Cache[*fleet.LiveState]

// GlobalSetup wires the route handlers to the ingest queue, the engine
// pipeline and the live state mirror. Trip commands go through the pipeline
// so they publish the same lifecycle events as engine-side transitions.
func GlobalSetup() error {
	queue, err := redis_client.QueueConnection.OpenQueue("position-queue")
	if err != nil {
		return err
	}
	positionQueue = queue

	enginePipeline, err = tracker.SetupPipeline()
	if err != nil {
		return err
	}

	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(90*time.Minute))
	liveStateCache = cache.New[*fleet.LiveState](redisStore)

	return nil
}
