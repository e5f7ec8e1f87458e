package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func TestVoiceJoined_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.VoiceJoined()
	c.VoiceJoined()
	c.VoiceLeft()

	if v := gather(t, reg, "parley_voice_joins_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("joins = %v, want 2", v)
	}
	if v := gather(t, reg, "parley_voice_leaves_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("leaves = %v, want 1", v)
	}
}

func TestJoinRejected_LabelsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.JoinRejected("RoomFull")
	c.JoinRejected("RoomFull")
	c.JoinRejected("NotAMember")

	mf := gather(t, reg, "parley_voice_join_rejected_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	if got["RoomFull"] != 2 || got["NotAMember"] != 1 {
		t.Errorf("rejected = %v", got)
	}
}

func TestEventCounters_AddBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.EventDelivered("voice:userJoined", 3)
	c.EventDropped("voice:userJoined", 1)

	if v := gather(t, reg, "parley_events_delivered_total").GetMetric()[0].GetCounter().GetValue(); v != 3 {
		t.Errorf("delivered = %v, want 3", v)
	}
	if v := gather(t, reg, "parley_events_dropped_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("dropped = %v, want 1", v)
	}
}

func TestGauges_Set(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetConnections(5)
	c.SetOnline(3)
	c.SetRooms(1)
	c.SetConnections(4)

	if v := gather(t, reg, "parley_connections").GetMetric()[0].GetGauge().GetValue(); v != 4 {
		t.Errorf("connections = %v, want 4", v)
	}
	if v := gather(t, reg, "parley_online_identities").GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Errorf("online = %v, want 3", v)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.PersistenceError("upsert_voice_state")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `parley_persistence_errors_total{op="upsert_voice_state"} 1`) {
		t.Errorf("unexpected body:\n%s", body)
	}
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.VoiceJoined()
	r.EventDropped("x", 1)
}
