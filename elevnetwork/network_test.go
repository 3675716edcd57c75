package elevnetwork

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"elevcore/common"
	"elevcore/elevassigner"
	"elevcore/elevfsm"
	"elevcore/logger"
)

func init() {
	_ = logger.GetLoggerConfigured(zerolog.Disabled)
}

func TestHelloFrame(t *testing.T) {
	id, err := decodeHelloFrame(encodeHelloFrame(7))
	if err != nil || id != 7 {
		t.Fatalf("decodeHelloFrame() = %d, %v", id, err)
	}
	if _, err := decodeHelloFrame([]byte("nothello")); err == nil {
		t.Errorf("expected an error for a bad magic")
	}
	if _, err := decodeHelloFrame(encodeHelloFrame(0)); err == nil {
		t.Errorf("expected an error for id 0")
	}
}

func TestFixedFrames(t *testing.T) {
	var buf bytes.Buffer
	for _, payload := range []string{`{"op":"hall"}`, `{"op":"car"}`} {
		n, err := WriteFixedFrameQUIC(&buf, []byte(payload), 64, 0)
		if err != nil || n != 64 {
			t.Fatalf("WriteFixedFrameQUIC() = %d, %v", n, err)
		}
	}
	if _, err := WriteFixedFrameQUIC(&buf, make([]byte, 65), 64, 0); err == nil {
		t.Errorf("expected an error for an oversized payload")
	}

	var got []string
	err := ReadFixedFramesQUIC(context.Background(), &buf, 64, func(frame []byte) error {
		if len(frame) != 64 {
			t.Errorf("frame of %d bytes", len(frame))
		}
		got = append(got, string(common.TrimZeros(frame)))
		return nil
	})
	if err != nil {
		t.Fatalf("ReadFixedFramesQUIC() returned %v", err)
	}
	if len(got) != 2 || got[0] != `{"op":"hall"}` || got[1] != `{"op":"car"}` {
		t.Errorf("read %q", got)
	}
}

func TestWorldViewKeepsLatestTick(t *testing.T) {
	wv := NewWorldView()
	if _, _, ok := wv.Snapshot(); ok {
		t.Fatalf("empty world view reported a snapshot")
	}
	states := []common.CarState{{ID: 1, Floor: 3, Requests: []common.Request{{Floor: 5}}}}
	wv.Update(4, states)
	states[0].Requests[0].Floor = 9
	wv.Update(2, []common.CarState{{ID: 1, Floor: 0}})

	tick, got, ok := wv.Snapshot()
	if !ok || tick != 4 {
		t.Fatalf("Snapshot() tick %d ok %v, expected 4", tick, ok)
	}
	if got[0].Floor != 3 || got[0].Requests[0].Floor != 5 {
		t.Errorf("world view shares memory with the caller: %+v", got)
	}
}

func TestApply(t *testing.T) {
	d := newDispatcher(t)

	hall := Apply(d, PanelMsg{Seq: 1, Op: OpHall, Floor: 4, Direction: common.Up})
	if hall.Error != "" || hall.RequestID == "" || hall.Seq != 1 {
		t.Fatalf("hall reply %+v", hall)
	}
	status := Apply(d, PanelMsg{Op: OpStatus, RequestID: hall.RequestID})
	if status.Status != "assigned" || status.CarID != 1 {
		t.Errorf("status reply %+v", status)
	}
	if bad := Apply(d, PanelMsg{Op: OpHall, Floor: 40, Direction: common.Up}); !strings.Contains(bad.Error, "outside building") {
		t.Errorf("expected a floor error, got %+v", bad)
	}
	if bad := Apply(d, PanelMsg{Op: "jump"}); bad.Error == "" {
		t.Errorf("unknown op accepted")
	}
	if cancel := Apply(d, PanelMsg{Op: OpCancel, RequestID: hall.RequestID}); cancel.Error != "" {
		t.Errorf("cancel reply %+v", cancel)
	}
	if snap := Apply(d, PanelMsg{Op: OpSnapshot}); len(snap.Cars) != 2 {
		t.Errorf("snapshot reply has %d cars", len(snap.Cars))
	}
}

func newDispatcher(t *testing.T) *elevassigner.Dispatcher {
	t.Helper()
	var cars []*elevfsm.Car
	for id, start := range []int{0, 10} {
		car, err := elevfsm.NewCar(id+1, 0, 10, start, elevfsm.CarOptions{})
		if err != nil {
			t.Fatalf("NewCar() returned %v", err)
		}
		cars = append(cars, car)
	}
	d, err := elevassigner.New(cars, elevassigner.DefaultOptions())
	if err != nil {
		t.Fatalf("New() returned %v", err)
	}
	return d
}

func TestPanelLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	d := newDispatcher(t)
	server := NewPanelServer(1, func(msg PanelMsg) PanelReply { return Apply(d, msg) })
	ln, err := ListenQUIC("127.0.0.1:0", server.quicConf)
	if err != nil {
		t.Fatalf("ListenQUIC() returned %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx, ln) }()

	client, err := DialPanel(ctx, ln.Addr().String(), 5)
	if err != nil {
		t.Fatalf("DialPanel() returned %v", err)
	}
	defer client.Close()
	if client.ServerID() != 1 {
		t.Errorf("ServerID() = %d", client.ServerID())
	}

	id, err := client.RequestElevator(ctx, 6, common.Down)
	if err != nil || id == "" {
		t.Fatalf("RequestElevator() = %q, %v", id, err)
	}
	if _, err := client.RequestElevator(ctx, -3, common.Up); err == nil {
		t.Errorf("expected an error for floor -3")
	}
	if _, err := client.AddCarCall(ctx, 1, 8); err != nil {
		t.Errorf("AddCarCall() returned %v", err)
	}
	st, err := client.Status(ctx, id)
	if err != nil || st.Status != "assigned" {
		t.Errorf("Status() = %+v, %v", st, err)
	}
	cars, err := client.Snapshot(ctx)
	if err != nil || len(cars) != 2 {
		t.Fatalf("Snapshot() = %v, %v", cars, err)
	}
	if err := client.Cancel(ctx, id); err != nil {
		t.Errorf("Cancel() returned %v", err)
	}

	for len(server.ConnectedPanels()) == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("panel never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if ids := server.ConnectedPanels(); len(ids) != 1 || ids[0] != 5 {
		t.Errorf("ConnectedPanels() = %v", ids)
	}

	server.Broadcast(12, d.Snapshot())
	select {
	case tick := <-client.Ticks():
		if tick.Tick != 12 || len(tick.Cars) != 2 {
			t.Errorf("tick push %+v", tick)
		}
	case <-ctx.Done():
		t.Fatalf("no tick pushed")
	}

	cancel()
	if err := <-served; err != nil {
		t.Errorf("Serve() returned %v", err)
	}
}

// stuckWriter blocks every Write until release is closed, like a stream whose
// peer stopped reading.
type stuckWriter struct {
	release chan struct{}
	writes  chan struct{}
}

func (w *stuckWriter) Write(b []byte) (int, error) {
	select {
	case w.writes <- struct{}{}:
	default:
	}
	<-w.release
	return len(b), nil
}

func TestBroadcastDoesNotWaitForLaggingPanel(t *testing.T) {
	d := newDispatcher(t)
	server := NewPanelServer(1, func(msg PanelMsg) PanelReply { return Apply(d, msg) })

	w := &stuckWriter{release: make(chan struct{}), writes: make(chan struct{}, 1)}
	p := newPanel(9, nil, nil, w)
	server.add(p)
	go p.writeTicks()

	states := d.Snapshot()
	server.Broadcast(0, states)
	select {
	case <-w.writes:
	case <-time.After(5 * time.Second):
		t.Fatalf("first tick was never written")
	}

	const ticks = 200
	start := time.Now()
	for tick := uint64(1); tick <= ticks; tick++ {
		server.Broadcast(tick, states)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("%d broadcasts to a stuck panel took %v", ticks, elapsed)
	}

	if n := len(p.ticks); n != tickBufSize {
		t.Errorf("%d ticks queued, expected %d", n, tickBufSize)
	}
	var last PanelReply
	for len(p.ticks) > 0 {
		last = <-p.ticks
	}
	if last.Tick != ticks {
		t.Errorf("newest queued tick is %d, expected %d", last.Tick, ticks)
	}
	if tick, _, ok := server.WorldView().Snapshot(); !ok || tick != ticks {
		t.Errorf("world view at tick %d, %v", tick, ok)
	}

	close(w.release)
	server.remove(p)
	if ids := server.ConnectedPanels(); len(ids) != 0 {
		t.Errorf("ConnectedPanels() = %v after remove", ids)
	}
}
