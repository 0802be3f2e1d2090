package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buspulse/buspulse/pkg/elastic_client"
)

type ingestAuditElasticEvent struct {
	Timestamp time.Time

	VehicleID string
	Outcome   string
	Reason    string
}

func recordIngestAudit(vehicleID string, outcome string, reason string) {
	currentTime := time.Now()
	yearNumber, weekNumber := currentTime.ISOWeek()
	indexName := fmt.Sprintf("tracker-ingest-events-%d-%d", yearNumber, weekNumber)

	elasticEvent, _ := json.Marshal(ingestAuditElasticEvent{
		Timestamp: currentTime,

		VehicleID: vehicleID,
		Outcome:   outcome,
		Reason:    reason,
	})

	elastic_client.IndexRequest(indexName, bytes.NewReader(elasticEvent))
}
