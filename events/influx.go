package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// InfluxMeasurement is the measurement every event is written to.
const InfluxMeasurement = "provisioning_events"

const (
	influxConnectTimeout = 10 * time.Second
	influxBatchSize      = 100
	influxFlushInterval  = 5000 // milliseconds
)

// InfluxOptions configures an InfluxPublisher.
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxPublisher records events as points in InfluxDB 2.
// Writes are batched; write failures are reported asynchronously to the log.
type InfluxPublisher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      *slog.Logger
}

var _ interfaces.EventPublisher = (*InfluxPublisher)(nil)

// NewInfluxPublisher connects to InfluxDB and verifies the server is healthy.
func NewInfluxPublisher(opts InfluxOptions, log *slog.Logger) (*InfluxPublisher, error) {
	client := influxdb2.NewClientWithOptions(
		opts.URL,
		opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(influxBatchSize).
			SetFlushInterval(influxFlushInterval),
	)

	ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping failed: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb server not healthy")
	}

	writeAPI := client.WriteAPI(opts.Org, opts.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn("InfluxDB write failed", "err", err)
		}
	}()

	return &InfluxPublisher{
		client:   client,
		writeAPI: writeAPI,
		log:      log,
	}, nil
}

// Point converts event into an InfluxDB point.
func Point(event interfaces.Event) *write.Point {
	tags := map[string]string{"type": string(event.Type)}
	if event.DeviceID != "" {
		tags["device"] = event.DeviceID.String()
	}

	fields := map[string]interface{}{"count": 1}
	if event.Artifact != "" {
		fields["artifact"] = event.Artifact
	}

	timestamp := event.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return write.NewPoint(InfluxMeasurement, tags, fields, timestamp)
}

// Publish queues event for the next batch write.
func (p *InfluxPublisher) Publish(ctx context.Context, event interfaces.Event) error {
	p.writeAPI.WritePoint(Point(event))
	return nil
}

// Close flushes pending points and closes the client.
func (p *InfluxPublisher) Close() error {
	p.writeAPI.Flush()
	p.client.Close()
	return nil
}
