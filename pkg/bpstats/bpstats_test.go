package bpstats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCollectorNilWhenDisabled(t *testing.T) {
	registry = nil
	enabled.Store(false)

	if c := NewCollector(); c != nil {
		t.Fatal("expected nil collector when metrics disabled")
	}
}

func TestNilCollectorMethodsAreNoOps(t *testing.T) {
	var c *Collector
	c.IncGenerated("ipn:1.1-ipn:2.1")
	c.IncTransmitted("r")
	c.IncRetransmitted("r")
	c.IncDelivered("r")
	c.IncReceived("r")
	c.AddAcknowledged("r", 3)
	c.IncLost("r")
	c.AddLost("r", 2)
	c.IncExpired("r")
	c.SetActive("r", 5)
}

func TestCollectorRecordsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitRegistry(reg)
	t.Cleanup(func() {
		registry = nil
		enabled.Store(false)
	})

	c := NewCollector()
	if c == nil {
		t.Fatal("expected non-nil collector once enabled")
	}

	c.IncGenerated("r1")
	c.IncGenerated("r1")
	c.AddAcknowledged("r1", 4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var gotGenerated, gotAck float64
	for _, mf := range mfs {
		switch mf.GetName() {
		case "bplib_channel_generated_total":
			gotGenerated = firstCounterValue(mf)
		case "bplib_channel_acknowledged_total":
			gotAck = firstCounterValue(mf)
		}
	}
	if gotGenerated != 2 {
		t.Errorf("got generated=%v, want 2", gotGenerated)
	}
	if gotAck != 4 {
		t.Errorf("got acknowledged=%v, want 4", gotAck)
	}
}

func firstCounterValue(mf *dto.MetricFamily) float64 {
	if len(mf.Metric) == 0 {
		return 0
	}
	return mf.Metric[0].GetCounter().GetValue()
}
