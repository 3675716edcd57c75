package elevnetwork

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	quic "github.com/quic-go/quic-go"

	"elevcore/common"
)

const (
	helloMagic        uint32 = 0x48454C4F // "HELO"
	helloTimeout             = 2 * time.Second
	openStreamTimeout        = 2 * time.Second
	dialTimeout              = 4 * time.Second
	writeTimeout             = 2 * time.Second
	tickBufSize              = 16
)

var ErrPanelClosed = errors.New("panel connection closed")

// PanelClient is the panel side of a connection: it sends PanelMsgs, matches
// replies by Seq and exposes the tick pushes on a channel.
type PanelClient struct {
	id       int
	serverID int

	conn   *quic.Conn
	stream *quic.Stream

	writeMu sync.Mutex
	seq     atomic.Uint64

	mu      sync.Mutex
	waiting map[uint64]chan PanelReply

	ticks chan PanelReply
	done  chan struct{}
}

func DialPanel(ctx context.Context, addr string, panelID int) (*PanelClient, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, st, err := DialQUIC(attemptCtx, addr, DefaultQUICConfig(), openStreamTimeout)
	if err != nil {
		return nil, err
	}
	serverID, err := exchangeHello(st, panelID, true)
	if err != nil {
		CloseQUIC(conn, st, "hello failed")
		return nil, err
	}
	Log.Info().Int("panel", panelID).Int("server", serverID).Str("addr", addr).Msg("panel connected")

	c := &PanelClient{
		id:       panelID,
		serverID: serverID,
		conn:     conn,
		stream:   st,
		waiting:  make(map[uint64]chan PanelReply),
		ticks:    make(chan PanelReply, tickBufSize),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *PanelClient) readLoop() {
	defer close(c.done)
	err := ReadFixedFramesQUIC(c.conn.Context(), c.stream, QUIC_FRAME_SIZE, func(frame []byte) error {
		var reply PanelReply
		if err := decodeFrame(frame, &reply); err != nil {
			Log.Warn().Err(err).Int("panel", c.id).Msg("dropping frame")
			return nil
		}
		if reply.Op == OpTick {
			select {
			case c.ticks <- reply:
			default:
				// Slow reader, drop the oldest tick.
				select {
				case <-c.ticks:
				default:
				}
				c.ticks <- reply
			}
			return nil
		}
		c.mu.Lock()
		ch, ok := c.waiting[reply.Seq]
		delete(c.waiting, reply.Seq)
		c.mu.Unlock()
		if ok {
			ch <- reply
		}
		return nil
	})
	if err != nil && c.conn.Context().Err() == nil {
		Log.Debug().Err(err).Int("panel", c.id).Msg("panel read loop ended")
	}
}

// Do sends msg and waits for the matching reply.
func (c *PanelClient) Do(ctx context.Context, msg PanelMsg) (PanelReply, error) {
	msg.Seq = c.seq.Add(1)
	ch := make(chan PanelReply, 1)
	c.mu.Lock()
	c.waiting[msg.Seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiting, msg.Seq)
		c.mu.Unlock()
	}()

	payload, err := encodeFrame(msg)
	if err != nil {
		return PanelReply{}, err
	}
	c.writeMu.Lock()
	_, err = WriteFixedFrameQUIC(c.stream, payload, QUIC_FRAME_SIZE, writeTimeout)
	c.writeMu.Unlock()
	if err != nil {
		return PanelReply{}, err
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return reply, fmt.Errorf("%s: %s", msg.Op, reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return PanelReply{}, ctx.Err()
	case <-c.done:
		return PanelReply{}, ErrPanelClosed
	}
}

func (c *PanelClient) RequestElevator(ctx context.Context, floor int, dir common.Direction) (common.RequestID, error) {
	reply, err := c.Do(ctx, PanelMsg{Op: OpHall, Floor: floor, Direction: dir})
	return reply.RequestID, err
}

func (c *PanelClient) AddCarCall(ctx context.Context, carID, floor int) (common.RequestID, error) {
	reply, err := c.Do(ctx, PanelMsg{Op: OpCar, CarID: carID, Floor: floor})
	return reply.RequestID, err
}

func (c *PanelClient) Cancel(ctx context.Context, id common.RequestID) error {
	_, err := c.Do(ctx, PanelMsg{Op: OpCancel, RequestID: id})
	return err
}

func (c *PanelClient) Status(ctx context.Context, id common.RequestID) (PanelReply, error) {
	return c.Do(ctx, PanelMsg{Op: OpStatus, RequestID: id})
}

func (c *PanelClient) Snapshot(ctx context.Context) ([]common.CarState, error) {
	reply, err := c.Do(ctx, PanelMsg{Op: OpSnapshot})
	return reply.Cars, err
}

// Ticks delivers the state the server pushes after every tick. Old ticks are
// dropped when the reader falls behind.
func (c *PanelClient) Ticks() <-chan PanelReply { return c.ticks }

func (c *PanelClient) ServerID() int { return c.serverID }

func (c *PanelClient) Close() error {
	CloseQUIC(c.conn, c.stream, "bye")
	<-c.done
	return nil
}

func exchangeHello(st io.ReadWriter, selfID int, outbound bool) (int, error) {
	if st == nil {
		return 0, fmt.Errorf("stream is nil")
	}
	if outbound {
		if err := writeHelloFrame(st, selfID, helloTimeout); err != nil {
			return 0, fmt.Errorf("send hello: %w", err)
		}
		peerID, err := readHelloFrame(st, helloTimeout)
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		return peerID, nil
	}

	peerID, err := readHelloFrame(st, helloTimeout)
	if err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if err := writeHelloFrame(st, selfID, helloTimeout); err != nil {
		return 0, fmt.Errorf("send hello: %w", err)
	}
	return peerID, nil
}

func encodeHelloFrame(selfID int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], helloMagic)
	binary.BigEndian.PutUint32(b[4:8], uint32(selfID))
	return b
}

func decodeHelloFrame(frame []byte) (int, error) {
	if len(frame) < 8 || binary.BigEndian.Uint32(frame[0:4]) != helloMagic {
		return 0, fmt.Errorf("invalid hello")
	}
	id := int(binary.BigEndian.Uint32(frame[4:8]))
	if id <= 0 {
		return 0, fmt.Errorf("invalid hello id %d", id)
	}
	return id, nil
}

func readHelloFrame(r io.Reader, timeout time.Duration) (int, error) {
	if d, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok && timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(timeout))
		defer d.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, QUIC_FRAME_SIZE)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return decodeHelloFrame(buf)
}

func writeHelloFrame(w io.Writer, selfID int, timeout time.Duration) error {
	_, err := WriteFixedFrameQUIC(w, encodeHelloFrame(selfID), QUIC_FRAME_SIZE, timeout)
	return err
}
