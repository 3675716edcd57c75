package elevnetwork

import (
	"encoding/json"
	"errors"
	"fmt"

	"elevcore/common"
	"elevcore/elevassigner"
)

const (
	OpHall     = "hall"
	OpCar      = "car"
	OpCancel   = "cancel"
	OpStatus   = "status"
	OpSnapshot = "snapshot"
	// Pushed by the server after every tick.
	OpTick = "tick"
)

// PanelMsg is sent by a panel. Seq is echoed in the reply.
type PanelMsg struct {
	Seq       uint64           `json:"seq"`
	Op        string           `json:"op"`
	Floor     int              `json:"floor,omitempty"`
	Direction common.Direction `json:"direction,omitempty"`
	CarID     int              `json:"carId,omitempty"`
	RequestID common.RequestID `json:"requestId,omitempty"`
}

type PanelReply struct {
	Seq       uint64            `json:"seq"`
	Op        string            `json:"op"`
	RequestID common.RequestID  `json:"requestId,omitempty"`
	Status    string            `json:"status,omitempty"`
	CarID     int               `json:"carId,omitempty"`
	Tick      uint64            `json:"tick,omitempty"`
	Error     string            `json:"error,omitempty"`
	Cars      []common.CarState `json:"cars,omitempty"`
}

// Handler answers one panel message.
type Handler func(msg PanelMsg) PanelReply

func encodeFrame(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

func decodeFrame(frame []byte, v any) error {
	if err := json.Unmarshal(common.TrimZeros(frame), v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

// Apply executes msg against the dispatcher.
func Apply(d *elevassigner.Dispatcher, msg PanelMsg) PanelReply {
	reply := PanelReply{Seq: msg.Seq, Op: msg.Op}
	var err error

	switch msg.Op {
	case OpHall:
		reply.RequestID, err = d.RequestElevator(msg.Floor, msg.Direction)
	case OpCar:
		reply.RequestID, err = d.AddCarCall(msg.CarID, msg.Floor)
		reply.CarID = msg.CarID
	case OpCancel:
		reply.RequestID = msg.RequestID
		err = d.Cancel(msg.RequestID)
	case OpStatus:
		reply.RequestID = msg.RequestID
		var st elevassigner.RequestStatus
		st, err = d.Status(msg.RequestID)
		var pending *common.NoAvailableCarError
		if err == nil || errors.As(err, &pending) {
			reply.Status = st.Status.String()
			reply.CarID = st.CarID
			err = nil
		}
	case OpSnapshot:
		reply.Cars = d.Snapshot()
	default:
		err = fmt.Errorf("unknown op %q", msg.Op)
	}

	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}
