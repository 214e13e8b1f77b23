package storage

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/Shopify/sarama"

	"github.com/wsiserve/wsiserve/wsi"
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * 1024

// KafkaConfig describes kafka servers for render activity logging.
type KafkaConfig struct {
	Servers       []string `toml:"servers"`
	TopicActivity string   `toml:"topic_activity"` // override for activity topic
}

// ActivityProducer publishes per-request render activity records to kafka.
// A nil producer is valid and drops all messages, so callers need no guards
// when kafka is unconfigured.
type ActivityProducer struct {
	producer sarama.AsyncProducer
	topic    string
}

var topicCleaner = regexp.MustCompile(`[^a-zA-Z0-9\._\-]+`)

// NewActivityProducer connects to the configured kafka servers.  Returns
// (nil, nil) when no servers are configured.
func NewActivityProducer(kc KafkaConfig, hostID string) (*ActivityProducer, error) {
	if len(kc.Servers) == 0 {
		return nil, nil
	}
	topic := kc.TopicActivity
	if topic == "" {
		topic = "wsiserve-activity-" + hostID
	}
	topic = topicCleaner.ReplaceAllString(topic, "-")

	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	producer, err := sarama.NewAsyncProducer(kc.Servers, config)
	if err != nil {
		return nil, err
	}
	ap := &ActivityProducer{producer: producer, topic: topic}
	go func() {
		for err := range producer.Errors() {
			wsi.Errorf("error on kafka send: %v\n", err)
		}
	}()
	wsi.Infof("Kafka topic for render activity: %s\n", topic)
	return ap, nil
}

// LogActivity publishes a JSON activity record.  The record map is augmented
// with the wall time of the call.
func (ap *ActivityProducer) LogActivity(activity map[string]interface{}) {
	if ap == nil {
		return
	}
	activity["time"] = time.Now().Format(time.RFC3339Nano)
	msg, err := json.Marshal(activity)
	if err != nil {
		wsi.Errorf("unable to marshal kafka activity: %v\n", err)
		return
	}
	ap.producer.Input() <- &sarama.ProducerMessage{
		Topic: ap.topic,
		Value: sarama.ByteEncoder(msg),
	}
}

// Shutdown flushes and closes the producer.
func (ap *ActivityProducer) Shutdown() {
	if ap == nil {
		return
	}
	if err := ap.producer.Close(); err != nil {
		wsi.Errorf("Kafka producer had error on close: %v\n", err)
	} else {
		wsi.Infof("Successfully shut down kafka producer.\n")
	}
}
