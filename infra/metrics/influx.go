package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	corelogger "github.com/kilianp07/evstation/core/logger"
	coremetrics "github.com/kilianp07/evstation/core/metrics"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/infra/logger"
)

// InfluxSink writes station events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      corelogger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.NewZerologLogger("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.StationSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSession writes the finalized bill as a line protocol event.
func (s *InfluxSink) RecordSession(bill model.Bill) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("pile_id", bill.PileID).
		AddTag("vehicle_id", bill.VehicleID).
		AddTag("component", "scheduler").
		AddField("energy_kwh", bill.EnergyKWh).
		AddField("duration_min", bill.DurationMin).
		AddField("charging_cost", bill.ChargingCost).
		AddField("service_cost", bill.ServiceCost).
		AddField("total_cost", bill.TotalCost).
		SetTime(bill.EndTime)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTick persists the outcome of one scheduling round.
func (s *InfluxSink) RecordTick(ev coremetrics.TickEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("scheduler_tick").
		AddTag("component", "scheduler").
		AddField("duration_ms", ev.Duration.Seconds()*1000).
		AddField("waiting", ev.Waiting).
		AddField("assigned", ev.Assigned).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPileStatus writes a pile status snapshot.
func (s *InfluxSink) RecordPileStatus(ev coremetrics.PileStatusEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("pile_status").
		AddTag("pile_id", ev.PileID).
		AddTag("component", "scheduler").
		AddField("status", int(ev.Status)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
