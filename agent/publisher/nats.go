package publisher

import (
	"github.com/ugorji/go/codec"
	rmm "github.com/vpscope/vpsagent/shared"
)

// MsgPublisher is the part of *nats.Conn the sink needs
type MsgPublisher interface {
	Publish(subj string, data []byte) error
}

// NatsSink publishes each event of a session msgpack encoded to one subject
type NatsSink struct {
	nc      MsgPublisher
	subject string
}

func NewNatsSink(nc MsgPublisher, subject string) *NatsSink {
	return &NatsSink{nc: nc, subject: subject}
}

func (s *NatsSink) Subject() string { return s.subject }

func (s *NatsSink) Deliver(ev rmm.OutputEvent) error {
	var resp []byte
	ret := codec.NewEncoderBytes(&resp, new(codec.MsgpackHandle))
	if err := ret.Encode(ev.Wire()); err != nil {
		return err
	}
	return s.nc.Publish(s.subject, resp)
}
