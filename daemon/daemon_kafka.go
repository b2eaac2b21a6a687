package daemon

import (
	"github.com/bsv-blockchain/escrowledger/services/escrow/events"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util/kafka"
)

// newEventPublisher publishes to the topic named by events_kafkaURL, or drops events when it is unset.
func newEventPublisher(logger ulogger.Logger, tSettings *settings.Settings) (events.Publisher, error) {
	kafkaURL := tSettings.Events.KafkaURL
	if kafkaURL == nil {
		logger.Infof("[Events] events_kafkaURL not set, ledger events are not published")
		return events.NoopPublisher{}, nil
	}

	clusterAdmin, producer, err := kafka.NewKafkaProducer(kafkaURL)
	if err != nil {
		return nil, err
	}

	// the topic exists now, the admin connection is not needed any more
	_ = clusterAdmin.Close()

	logger.Infof("[Events] publishing ledger events to %s%s", kafkaURL.Host, kafkaURL.Path)

	return events.NewKafkaPublisher(producer), nil
}
