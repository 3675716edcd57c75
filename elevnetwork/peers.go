package elevnetwork

import (
	"context"
	"io"
	"sort"
	"sync"

	quic "github.com/quic-go/quic-go"

	"elevcore/common"
	"elevcore/logger"
)

var Log = logger.GetLogger()

// PanelServer accepts hall and car panels over QUIC, answers their messages
// through handler and pushes the car states after every tick.
type PanelServer struct {
	selfID   int
	handler  Handler
	quicConf *quic.Config
	wv       *WorldView

	mu     sync.RWMutex
	panels map[int]*panel
}

type panel struct {
	id     int
	conn   *quic.Conn
	stream *quic.Stream
	w      io.Writer

	writeMu sync.Mutex

	// Tick pushes waiting for writeTicks.
	ticks chan PanelReply
	done  chan struct{}
}

func newPanel(id int, conn *quic.Conn, stream *quic.Stream, w io.Writer) *panel {
	return &panel{
		id:     id,
		conn:   conn,
		stream: stream,
		w:      w,
		ticks:  make(chan PanelReply, tickBufSize),
		done:   make(chan struct{}),
	}
}

func (p *panel) send(reply PanelReply) error {
	payload, err := encodeFrame(reply)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err = WriteFixedFrameQUIC(p.w, payload, QUIC_FRAME_SIZE, writeTimeout)
	return err
}

// push queues a tick without blocking. A panel that lags behind loses its
// oldest queued ticks.
func (p *panel) push(reply PanelReply) (dropped int) {
	for {
		select {
		case p.ticks <- reply:
			return dropped
		default:
		}
		select {
		case <-p.ticks:
			dropped++
		default:
		}
	}
}

// writeTicks drains the tick queue onto the stream until the panel is removed.
func (p *panel) writeTicks() {
	for {
		select {
		case <-p.done:
			return
		case reply := <-p.ticks:
			if err := p.send(reply); err != nil {
				Log.Debug().Err(err).Int("panel", p.id).Uint64("tick", reply.Tick).Msg("tick push failed")
			}
		}
	}
}

func NewPanelServer(selfID int, handler Handler) *PanelServer {
	return &PanelServer{
		selfID:   selfID,
		handler:  handler,
		quicConf: DefaultQUICConfig(),
		wv:       NewWorldView(),
		panels:   make(map[int]*panel),
	}
}

func (s *PanelServer) WorldView() *WorldView { return s.wv }

func (s *PanelServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := ListenQUIC(addr, s.quicConf)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *PanelServer) Serve(ctx context.Context, ln *quic.Listener) error {
	Log.Info().Int("server", s.selfID).Str("addr", ln.Addr().String()).Msg("panel server listening")
	return ServeQUIC(ctx, ln, func(conn *quic.Conn) {
		s.handleConn(ctx, conn)
	})
}

func (s *PanelServer) handleConn(ctx context.Context, conn *quic.Conn) {
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return
	}
	panelID, err := exchangeHello(st, s.selfID, false)
	if err != nil {
		Log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("panel hello failed")
		CloseQUIC(conn, st, "hello failed")
		return
	}

	p := newPanel(panelID, conn, st, st)
	s.add(p)
	defer s.remove(p)
	go p.writeTicks()
	Log.Info().Int("panel", panelID).Str("remote", conn.RemoteAddr().String()).Msg("panel connected")

	if tick, states, ok := s.wv.Snapshot(); ok {
		p.push(PanelReply{Op: OpTick, Tick: tick, Cars: states})
	}

	err = ReadFixedFramesQUIC(ctx, st, QUIC_FRAME_SIZE, func(frame []byte) error {
		var msg PanelMsg
		if err := decodeFrame(frame, &msg); err != nil {
			return p.send(PanelReply{Error: err.Error()})
		}
		reply := s.handler(msg)
		reply.Seq = msg.Seq
		if reply.Op == "" {
			reply.Op = msg.Op
		}
		return p.send(reply)
	})
	if err != nil && ctx.Err() == nil && conn.Context().Err() == nil {
		Log.Warn().Err(err).Int("panel", panelID).Msg("panel connection failed")
	}
	Log.Info().Int("panel", panelID).Msg("panel disconnected")
}

// add registers p, replacing an older connection using the same panel id.
func (s *PanelServer) add(p *panel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.panels[p.id]; existing != nil {
		CloseQUIC(existing.conn, existing.stream, "replaced")
		Log.Info().Int("panel", p.id).Msg("replacing panel connection")
	}
	s.panels[p.id] = p
}

func (s *PanelServer) remove(p *panel) {
	s.mu.Lock()
	if s.panels[p.id] == p {
		delete(s.panels, p.id)
	}
	s.mu.Unlock()
	close(p.done)
	CloseQUIC(p.conn, p.stream, "bye")
}

// Broadcast records the tick in the world view and queues it for every panel.
// It never waits on the network, so it is safe to call from the clock.
func (s *PanelServer) Broadcast(tick uint64, states []common.CarState) {
	s.wv.Update(tick, states)

	s.mu.RLock()
	panels := make([]*panel, 0, len(s.panels))
	for _, p := range s.panels {
		panels = append(panels, p)
	}
	s.mu.RUnlock()

	reply := PanelReply{Op: OpTick, Tick: tick, Cars: states}
	for _, p := range panels {
		if dropped := p.push(reply); dropped > 0 {
			Log.Debug().Int("panel", p.id).Int("dropped", dropped).Msg("panel lagging, dropped old ticks")
		}
	}
}

// ConnectedPanels returns the connected panel ids in ascending order.
func (s *PanelServer) ConnectedPanels() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.panels))
	for id := range s.panels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
