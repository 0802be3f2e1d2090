package tracker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buspulse/buspulse/pkg/consumer"
	"github.com/buspulse/buspulse/pkg/database"
	"github.com/buspulse/buspulse/pkg/elastic_client"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/redis_client"
	"github.com/buspulse/buspulse/pkg/transport"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
)

const numConsumers = 5
const batchSize = 200

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Realtime engine ingests position reports and tracks vehicle trips",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the tracking engine",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					pipeline, err := SetupPipeline()
					if err != nil {
						return err
					}

					if err := pipeline.Reconcile(context.Background()); err != nil {
						return err
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       "position-queue",
						NumberConsumers: numConsumers,
						BatchSize:       batchSize,
						Timeout:         2 * time.Second,
						Consumer:        NewBatchConsumer(0, pipeline),
					}
					redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
			{
				Name:  "test-ingest",
				Usage: "run a single position report through the engine",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					pipeline, err := SetupPipeline()
					if err != nil {
						return err
					}

					result, err := pipeline.Ingest(context.Background(), fleet.Position{
						VehicleID:  "BUS:TEST:1",
						Latitude:   51.514797,
						Longitude:  -0.141944,
						SpeedKMH:   24,
						ObservedAt: time.Now(),
					})
					pretty.Println(result, err)

					return nil
				},
			},
		},
	}
}

// SetupPipeline builds a fully wired engine pipeline over the global Mongo
// and Redis connections. The web API shares this wiring so trip commands it
// issues publish the same broadcasts and dispatcher events as the engine.
func SetupPipeline() (*Pipeline, error) {
	config := GetConfig()

	eventPublisher, err := NewQueueEventPublisher()
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline(config, NewMongoStore(), eventPublisher)

	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(90*time.Minute))
	pipeline.LiveStore().WithCache(cache.New[*fleet.LiveState](redisStore))
	pipeline.Trips().WithCache(cache.New[*fleet.Trip](redisStore))

	pipeline.Broadcaster().WithForwarder(transport.NewRedisForwarder(redis_client.Client))

	return pipeline, nil
}
