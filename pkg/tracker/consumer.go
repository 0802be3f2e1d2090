package tracker

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/rs/zerolog/log"
)

// BatchConsumer drains position reports off the ingest queue and runs
// each through the pipeline.
type BatchConsumer struct {
	id       int
	pipeline *Pipeline
}

func NewBatchConsumer(id int, pipeline *Pipeline) *BatchConsumer {
	return &BatchConsumer{id: id, pipeline: pipeline}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var report fleet.Position
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			log.Error().Err(err).Msg("Failed to decode position report")
			continue
		}

		result, err := consumer.pipeline.Ingest(context.Background(), report)
		if err != nil {
			log.Error().Err(err).Str("vehicle", report.VehicleID).Msg("Failed to ingest position report")
			continue
		}

		if result.Outcome != IngestOutcomeAccepted {
			log.Debug().
				Str("vehicle", report.VehicleID).
				Str("outcome", string(result.Outcome)).
				Str("reason", result.Reason).
				Msg("Position report not applied")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume position report")
		}
	}
}
