package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/shelf/pkg/eventstream"
	"github.com/papercomputeco/shelf/pkg/eventstream/kafka"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer *fakeWriter
		pub    *kafka.Publisher
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		pub = kafka.NewPublisherWithWriter(writer, 0)
	})

	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(HaveOccurred())
		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
	})

	It("writes the event keyed by document id", func() {
		event := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentIngested, eventstream.DocumentMeta{ID: 42, Filename: "a.txt"}, nil)
		Expect(pub.PublishDocument(context.Background(), event)).To(Succeed())

		Expect(writer.messages).To(HaveLen(1))
		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("42"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeDocumentIngested)}))

		var decoded eventstream.DocumentEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
	})

	It("rejects nil events", func() {
		Expect(pub.PublishDocument(context.Background(), nil)).To(MatchError(eventstream.ErrNilDocumentEvent))
	})

	It("wraps writer failures", func() {
		writer.err = errors.New("broker down")
		event := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentDeleted, eventstream.DocumentMeta{ID: 1}, nil)
		err := pub.PublishDocument(context.Background(), event)
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
