package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// JetStreamConfig configures the JetStream dispatcher
type JetStreamConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
	DurablePrefix string
	Lanes         int
	AckWait       time.Duration
	FetchWait     time.Duration
	MaxAckPending int
}

// JetStreamConfigFromViper reads the queue.jetstream.* settings
func JetStreamConfigFromViper() JetStreamConfig {
	return JetStreamConfig{
		URL:           viper.GetString("queue.jetstream.url"),
		Stream:        viper.GetString("queue.jetstream.stream"),
		SubjectPrefix: viper.GetString("queue.jetstream.subject_prefix"),
		DurablePrefix: viper.GetString("queue.jetstream.durable_prefix"),
		Lanes:         viper.GetInt("queue.jetstream.lanes"),
		AckWait:       viper.GetDuration("queue.jetstream.ack_wait"),
		FetchWait:     viper.GetDuration("queue.jetstream.fetch_wait"),
		MaxAckPending: viper.GetInt("queue.max_concurrent"),
	}
}

func (c JetStreamConfig) withDefaults() JetStreamConfig {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Stream == "" {
		c.Stream = "CONSENTSCAN_JOBS"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "consentscan.jobs"
	}
	if c.DurablePrefix == "" {
		c.DurablePrefix = "consentscan-worker"
	}
	if c.Lanes < 1 {
		c.Lanes = 5
	}
	if c.AckWait <= 0 {
		c.AckWait = 2 * time.Minute
	}
	if c.FetchWait <= 0 {
		c.FetchWait = 250 * time.Millisecond
	}
	if c.MaxAckPending < 1 {
		c.MaxAckPending = 1
	}
	return c
}

// Lane maps a job priority to a lane number where 1 is the most urgent.
// Every priority in [0, lanes-1] gets its own lane; anything else is
// rejected with ErrPriorityOutOfRange.
func Lane(priority, lanes int) (int, error) {
	if priority < 0 || priority > lanes-1 {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrPriorityOutOfRange, priority, lanes-1)
	}
	return lanes - priority, nil
}

// JetStreamDispatcher publishes job ids to a work queue stream with one
// subject per priority lane and one durable pull consumer per lane.
type JetStreamDispatcher struct {
	config JetStreamConfig
	conn   *nats.Conn
	js     nats.JetStreamContext
	lanes  []*nats.Subscription
}

// NewJetStreamDispatcher connects, creates the stream when missing and binds
// the lane consumers
func NewJetStreamDispatcher(config JetStreamConfig) (*JetStreamDispatcher, error) {
	config = config.withDefaults()
	conn, err := nats.Connect(config.URL, nats.Name("consentscan"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	d := &JetStreamDispatcher{config: config, conn: conn, js: js}
	if err := d.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	for lane := 1; lane <= config.Lanes; lane++ {
		sub, err := js.PullSubscribe(
			d.subject(lane), d.durable(lane),
			nats.BindStream(config.Stream),
			nats.ManualAck(),
			nats.AckExplicit(),
			nats.AckWait(config.AckWait),
			nats.MaxAckPending(config.MaxAckPending),
		)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe to lane %d: %w", lane, err)
		}
		d.lanes = append(d.lanes, sub)
	}
	log.Info().Str("url", config.URL).Str("stream", config.Stream).Int("lanes", config.Lanes).Msg("JetStream dispatcher ready")
	return d, nil
}

func (d *JetStreamDispatcher) ensureStream() error {
	_, err := d.js.StreamInfo(d.config.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}
	_, err = d.js.AddStream(&nats.StreamConfig{
		Name:      d.config.Stream,
		Subjects:  []string{d.config.SubjectPrefix + ".>"},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	log.Info().Str("stream", d.config.Stream).Msg("Created JetStream stream")
	return nil
}

func (d *JetStreamDispatcher) subject(lane int) string {
	return fmt.Sprintf("%s.%d", d.config.SubjectPrefix, lane)
}

func (d *JetStreamDispatcher) durable(lane int) string {
	return fmt.Sprintf("%s-lane-%d", d.config.DurablePrefix, lane)
}

// Publish sends the job id on its priority lane. The id doubles as the
// message id so duplicate publishes are dropped by the server.
func (d *JetStreamDispatcher) Publish(ctx context.Context, jobID string, priority int) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	lane, err := Lane(priority, d.config.Lanes)
	if err != nil {
		return err
	}
	_, err = d.js.Publish(d.subject(lane), []byte(jobID), nats.Context(ctx), nats.MsgId(jobID))
	if err != nil {
		return err
	}
	log.Debug().Str("job_id", jobID).Int("priority", priority).Int("lane", lane).Msg("Published scan job")
	return nil
}

// Fetch pulls from the lanes in urgency order until max deliveries are collected
func (d *JetStreamDispatcher) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	var deliveries []Delivery
	for i, sub := range d.lanes {
		if len(deliveries) >= max || ctx.Err() != nil {
			break
		}
		msgs, err := sub.Fetch(max-len(deliveries), nats.MaxWait(d.config.FetchWait))
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		if err != nil {
			return deliveries, fmt.Errorf("fetch lane %d: %w", i+1, err)
		}
		for _, msg := range msgs {
			deliveries = append(deliveries, jetStreamDelivery{msg: msg})
		}
	}
	return deliveries, nil
}

// MaxPriority is the highest priority with its own lane
func (d *JetStreamDispatcher) MaxPriority() int {
	return d.config.Lanes - 1
}

// AckWait returns the consumer acknowledgement deadline
func (d *JetStreamDispatcher) AckWait() time.Duration {
	return d.config.AckWait
}

// Close drains the connection
func (d *JetStreamDispatcher) Close() error {
	if d.conn == nil || d.conn.IsClosed() {
		return nil
	}
	return d.conn.Drain()
}

type jetStreamDelivery struct {
	msg *nats.Msg
}

func (j jetStreamDelivery) JobID() string     { return string(j.msg.Data) }
func (j jetStreamDelivery) Ack() error        { return j.msg.Ack() }
func (j jetStreamDelivery) Nak() error        { return j.msg.Nak() }
func (j jetStreamDelivery) Term() error       { return j.msg.Term() }
func (j jetStreamDelivery) InProgress() error { return j.msg.InProgress() }
