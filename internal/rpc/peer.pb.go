// Package rpc holds the wire types for the peer mesh. The message and
// service bindings are maintained by hand against the legacy
// golang/protobuf struct-tag API so the module carries no generated
// sources; regenerate from peer.proto if the schema grows.
package rpc

import (
	context "context"
	fmt "fmt"

	proto "github.com/golang/protobuf/proto"
	grpc "google.golang.org/grpc"
)

// Packet is one tagged point-to-point message between pool peers.
type Packet struct {
	From    int32  `protobuf:"varint,1,opt,name=from,proto3" json:"from,omitempty"`
	Tag     int32  `protobuf:"varint,2,opt,name=tag,proto3" json:"tag,omitempty"`
	Payload []byte `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
}

// Reset clears the message.
func (m *Packet) Reset() { *m = Packet{} }

// String renders the message.
func (m *Packet) String() string { return fmt.Sprintf("Packet<from=%d tag=%d>", m.From, m.Tag) }

// ProtoMessage marks the struct as a protobuf message.
func (*Packet) ProtoMessage() {}

// GetFrom returns the sender rank.
func (m *Packet) GetFrom() int32 {
	if m != nil {
		return m.From
	}
	return 0
}

// GetTag returns the channel tag.
func (m *Packet) GetTag() int32 {
	if m != nil {
		return m.Tag
	}
	return 0
}

// GetPayload returns the opaque payload.
func (m *Packet) GetPayload() []byte {
	if m != nil {
		return m.Payload
	}
	return nil
}

// Ack is the empty delivery acknowledgement.
type Ack struct{}

// Reset clears the message.
func (m *Ack) Reset() { *m = Ack{} }

// String renders the message.
func (m *Ack) String() string { return "Ack" }

// ProtoMessage marks the struct as a protobuf message.
func (*Ack) ProtoMessage() {}

func init() {
	proto.RegisterType((*Packet)(nil), "ezflow.rpc.Packet")
	proto.RegisterType((*Ack)(nil), "ezflow.rpc.Ack")
}

// PeerClient is the client API for the Peer service.
type PeerClient interface {
	// Deliver enqueues a packet into the receiver's (from, tag) mailbox.
	Deliver(ctx context.Context, in *Packet, opts ...grpc.CallOption) (*Ack, error)
}

type peerClient struct {
	cc *grpc.ClientConn
}

// NewPeerClient binds the Peer service to a connection.
func NewPeerClient(cc *grpc.ClientConn) PeerClient {
	return &peerClient{cc}
}

func (c *peerClient) Deliver(ctx context.Context, in *Packet, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	err := c.cc.Invoke(ctx, "/ezflow.rpc.Peer/Deliver", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PeerServer is the server API for the Peer service.
type PeerServer interface {
	// Deliver enqueues a packet into the receiver's (from, tag) mailbox.
	Deliver(context.Context, *Packet) (*Ack, error)
}

// RegisterPeerServer registers a Peer implementation.
func RegisterPeerServer(s *grpc.Server, srv PeerServer) {
	s.RegisterService(&_Peer_serviceDesc, srv)
}

func _Peer_Deliver_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Packet)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PeerServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ezflow.rpc.Peer/Deliver",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PeerServer).Deliver(ctx, req.(*Packet))
	}
	return interceptor(ctx, in, info, handler)
}

var _Peer_serviceDesc = grpc.ServiceDesc{
	ServiceName: "ezflow.rpc.Peer",
	HandlerType: (*PeerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deliver",
			Handler:    _Peer_Deliver_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "peer.proto",
}
