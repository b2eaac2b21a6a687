// Package kafka wraps a sarama sync producer for publishing keyed messages to one topic.
package kafka

import (
	"encoding/binary"
	"math"
	"net/url"
	"strings"

	"github.com/IBM/sarama"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/util"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

/**
kafka-topics.sh --list --bootstrap-server localhost:9092

kafka-console-consumer.sh --topic escrow-events --bootstrap-server localhost:9092 --from-beginning
*/

type KafkaProducerI interface {
	Send(key []byte, data []byte) error
	Close() error
}

type SyncKafkaProducer struct {
	Producer   sarama.SyncProducer
	Topic      string
	Partitions int32
}

func (k *SyncKafkaProducer) Close() error {
	if err := k.Producer.Close(); err != nil {
		return errors.NewServiceError("failed to close Kafka producer", err)
	}

	return nil
}

// Send publishes data synchronously. Messages with the same key always land on the same partition.
func (k *SyncKafkaProducer) Send(key []byte, data []byte) error {
	_, _, err := k.Producer.SendMessage(&sarama.ProducerMessage{
		Topic:     k.Topic,
		Key:       sarama.ByteEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Partition: k.partition(key),
	})
	if err != nil {
		return errors.NewKafkaError("failed to send message to topic %s", k.Topic, err)
	}

	return nil
}

func (k *SyncKafkaProducer) partition(key []byte) int32 {
	if k.Partitions <= 1 || len(key) < 4 {
		return 0
	}

	partitions, err := safeconversion.Int32ToUint32(k.Partitions)
	if err != nil {
		return 0
	}

	partition, err := safeconversion.Uint32ToInt32(binary.LittleEndian.Uint32(key) % partitions)
	if err != nil {
		return 0
	}

	return partition
}

// topicDetail reads the topic settings from the URL query: partitions, replication and retention (ms).
func topicDetail(kafkaURL *url.URL) (*sarama.TopicDetail, error) {
	partitions, err := int32QueryParam(kafkaURL, "partitions", 1)
	if err != nil {
		return nil, err
	}

	replication, err := int32QueryParam(kafkaURL, "replication", 1)
	if err != nil {
		return nil, err
	}

	if replication > math.MaxInt16 {
		return nil, errors.NewConfigurationError("kafka replication %d is out of range", replication)
	}

	retentionPeriod := util.GetQueryParam(kafkaURL, "retention", "604800000") // 7 days

	return &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: int16(replication),
		ConfigEntries: map[string]*string{
			"retention.ms": &retentionPeriod,
		},
	}, nil
}

func int32QueryParam(kafkaURL *url.URL, key string, defaultValue int) (int32, error) {
	value := util.GetQueryParamInt(kafkaURL, key, defaultValue)

	unsigned, err := safeconversion.IntToUint32(value)
	if err != nil {
		return 0, errors.NewConfigurationError("kafka %s %d is out of range", key, value, err)
	}

	signed, err := safeconversion.Uint32ToInt32(unsigned)
	if err != nil {
		return 0, errors.NewConfigurationError("kafka %s %d is out of range", key, value, err)
	}

	return signed, nil
}

// NewKafkaProducer creates the topic named by the URL path if needed and connects a sync producer to it.
// Query parameters: partitions, replication, retention (ms), flush_bytes.
func NewKafkaProducer(kafkaURL *url.URL) (sarama.ClusterAdmin, KafkaProducerI, error) {
	brokersURL := strings.Split(kafkaURL.Host, ",")

	topic := strings.TrimPrefix(kafkaURL.Path, "/")
	if topic == "" {
		return nil, nil, errors.NewConfigurationError("kafka URL %s has no topic", kafkaURL.String())
	}

	detail, err := topicDetail(kafkaURL)
	if err != nil {
		return nil, nil, err
	}

	config := sarama.NewConfig()
	config.Version = sarama.V2_1_0_0

	clusterAdmin, err := sarama.NewClusterAdmin(brokersURL, config)
	if err != nil {
		return nil, nil, errors.NewServiceError("error while creating cluster admin", err)
	}

	if err := clusterAdmin.CreateTopic(topic, detail, false); err != nil {
		if !errors.Is(err, sarama.ErrTopicAlreadyExists) {
			_ = clusterAdmin.Close()
			return nil, nil, errors.NewServiceError("unable to create topic %s", topic, err)
		}
	}

	flushBytes := util.GetQueryParamInt(kafkaURL, "flush_bytes", 1024)

	producer, err := ConnectProducer(brokersURL, topic, detail.NumPartitions, flushBytes)
	if err != nil {
		_ = clusterAdmin.Close()
		return nil, nil, errors.NewServiceError("unable to connect to kafka", err)
	}

	return clusterAdmin, producer, nil
}

func ProducerConfig(flushBytes int) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Partitioner = sarama.NewManualPartitioner
	config.Producer.Flush.Bytes = flushBytes

	return config
}

func ConnectProducer(brokersURL []string, topic string, partitions int32, flushBytes ...int) (KafkaProducerI, error) {
	flush := 16 * 1024
	if len(flushBytes) > 0 {
		flush = flushBytes[0]
	}

	conn, err := sarama.NewSyncProducer(brokersURL, ProducerConfig(flush))
	if err != nil {
		return nil, err
	}

	return &SyncKafkaProducer{
		Producer:   conn,
		Partitions: partitions,
		Topic:      topic,
	}, nil
}
