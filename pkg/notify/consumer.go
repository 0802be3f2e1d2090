package notify

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/rs/zerolog/log"
)

type NotifyBatchConsumer struct {
	pushManager *PushManager
}

func NewNotifyBatchConsumer(pushManager *PushManager) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{pushManager: pushManager}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var notification fleet.Notification
		if err := json.Unmarshal([]byte(payload), &notification); err != nil {
			log.Error().Err(err).Msg("Failed to decode notification")
			continue
		}

		switch notification.Type {
		case fleet.NotificationTypePush:
			if err := c.pushManager.SendPush(notification); err != nil {
				log.Error().Err(err).Str("target", notification.TargetUser).Msg("Failed to send push notification")
			}
		default:
			log.Error().Str("type", string(notification.Type)).Msg("Unsupported notification type")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume from queue")
		}
	}
}
