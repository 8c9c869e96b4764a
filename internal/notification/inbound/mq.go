package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notification.consumer_names")

	var consumers = []struct {
		name              string
		topic             string // destination where publisher sent message
		nsqConsumerName   string // for nsq
		natsConsumerName  string // for nats
		kafkaConsumerName string // for kafka and memory
		handler           messaging.Handler
	}{
		{
			name:              event.OTPIssuedConsumerNotification,
			topic:             event.OTPIssuedDestination,
			nsqConsumerName:   event.OTPIssuedConsumerNotification,
			natsConsumerName:  event.OTPIssuedConsumerNotification,
			kafkaConsumerName: event.OTPIssuedConsumerNotification,
			handler:           mqHandler.OTPIssuedNotification,
		},
	}

	concurrency := cfg.GetInt("modules.notification.concurrency")
	if concurrency <= 0 {
		concurrency = 10
	}

	for _, consumer := range consumers {
		if len(enableConsumerNames) > 0 && slices.Contains(enableConsumerNames, consumer.name) {
			routine.Go(ctx, func(pCtx context.Context) error {
				slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
				return messenger.Consume(pCtx,
					consumer.topic,
					consumer.handler,
					messaging.WithChannel(consumer.nsqConsumerName),
					messaging.WithQueueGroup(consumer.natsConsumerName),
					messaging.WithGroup(consumer.kafkaConsumerName),
					messaging.WithAutoAck(true),
					messaging.WithConcurrency(concurrency),
					messaging.WithMaxInFlight(concurrency),
				)
			})
		}
	}
}
