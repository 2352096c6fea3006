package cluster

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-ezflow/ezflow/internal/rpc"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/go-ezflow/ezflow/logging"
	uuid "github.com/gofrs/uuid"
	"google.golang.org/grpc"
)

// grpcMaxTag bounds tags on the mesh transport; Karta wraps its counter
// modulo this at run boundaries.
const grpcMaxTag = 1 << 20

// NodeOptions configures one worker process of a gRPC pool.
type NodeOptions struct {
	// Rank of this process in [0, len(Peers)).
	Rank int
	// Peers lists host:port for every rank, including this one.
	Peers []string
	// RPCTimeout bounds each delivery attempt.
	RPCTimeout time.Duration
	// DialRetries bounds connection attempts per peer at startup.
	DialRetries int
}

func ensureDefaultNodeOptionsValues(opts *NodeOptions) {
	if opts.RPCTimeout == 0 {
		opts.RPCTimeout = 20 * time.Second
	}
	if opts.DialRetries == 0 {
		opts.DialRetries = 30
	}
}

// Node is one worker process of a gRPC peer mesh. Every process runs a
// Peer server; sends are unary Deliver calls, receives are posted
// against the local mailbox.
type Node struct {
	id      string
	opts    *NodeOptions
	mb      *mailbox
	server  *grpc.Server
	conns   []*grpc.ClientConn
	clients []rpc.PeerClient
	log     *logging.Logger

	lifecycleLock sync.Mutex
	serveErr      chan error
}

// NewNode creates a worker for the given options.
func NewNode(opts *NodeOptions) (*Node, error) {
	if opts == nil || len(opts.Peers) == 0 {
		return nil, fmt.Errorf("cluster: peer list cannot be empty")
	}
	if opts.Rank < 0 || opts.Rank >= len(opts.Peers) {
		return nil, fmt.Errorf("cluster: rank %d out of range for %d peers", opts.Rank, len(opts.Peers))
	}
	ensureDefaultNodeOptionsValues(opts)
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID: %v", err)
	}
	return &Node{
		id:       id.String(),
		opts:     opts,
		mb:       newMailbox(),
		log:      logging.New(opts.Rank),
		serveErr: make(chan error, 1),
	}, nil
}

// ID returns the node's pool identifier.
func (n *Node) ID() string { return n.id }

// Start serves the local Peer endpoint and dials every other rank. It
// returns once the mesh is connected.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.opts.Peers[n.opts.Rank])
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	n.lifecycleLock.Lock()
	n.server = grpc.NewServer()
	n.lifecycleLock.Unlock()
	rpc.RegisterPeerServer(n.server, &peerServer{mb: n.mb})
	go func() {
		n.serveErr <- n.server.Serve(lis)
	}()

	n.conns = make([]*grpc.ClientConn, len(n.opts.Peers))
	n.clients = make([]rpc.PeerClient, len(n.opts.Peers))
	for rank, addr := range n.opts.Peers {
		if rank == n.opts.Rank {
			continue
		}
		conn, err := n.dial(addr)
		if err != nil {
			n.Stop()
			return err
		}
		n.conns[rank] = conn
		n.clients[rank] = rpc.NewPeerClient(conn)
	}
	return nil
}

func (n *Node) dial(addr string) (*grpc.ClientConn, error) {
	var lastErr error
	for i := 0; i < n.opts.DialRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), n.opts.RPCTimeout)
		conn, err := grpc.DialContext(ctx, addr, grpc.WithInsecure(), grpc.WithBlock())
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("fail to dial %s: %v", addr, lastErr)
}

// Stop tears the mesh down.
func (n *Node) Stop() {
	for _, c := range n.conns {
		if c != nil {
			c.Close()
		}
	}
	n.lifecycleLock.Lock()
	if n.server != nil {
		n.server.GracefulStop()
		n.server = nil
	}
	n.lifecycleLock.Unlock()
}

// Comm returns the mesh transport for this rank.
func (n *Node) Comm() karta.Comm {
	return &grpcComm{node: n}
}

// Karta returns a scheduler over this node's mesh.
func (n *Node) Karta() *karta.Karta {
	return karta.New(n.Comm(), n.log)
}

type peerServer struct {
	mb *mailbox
}

// Deliver enqueues a packet into the (from, tag) mailbox.
func (s *peerServer) Deliver(ctx context.Context, in *rpc.Packet) (*rpc.Ack, error) {
	s.mb.push(int(in.GetFrom()), int(in.GetTag()), in.GetPayload())
	return &rpc.Ack{}, nil
}

type grpcComm struct {
	node *Node
}

func (c *grpcComm) Rank() int   { return c.node.opts.Rank }
func (c *grpcComm) Size() int   { return len(c.node.opts.Peers) }
func (c *grpcComm) MaxTag() int { return grpcMaxTag }

func (c *grpcComm) Isend(to int, tag int, payload []byte) karta.SendHandle {
	if to == c.node.opts.Rank {
		c.node.mb.push(to, tag, payload)
		return memSend{}
	}
	h := &grpcSend{done: make(chan struct{})}
	client := c.node.clients[to]
	rank := c.node.opts.Rank
	timeout := c.node.opts.RPCTimeout
	log := c.node.log
	go func() {
		defer close(h.done)
		pkt := &rpc.Packet{From: int32(rank), Tag: int32(tag), Payload: payload}
		for {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			_, err := client.Deliver(ctx, pkt)
			cancel()
			if err == nil {
				return
			}
			log.Log(logging.ModeWarning, "delivery to rank %d retried: %v", to, err)
			time.Sleep(100 * time.Millisecond)
		}
	}()
	return h
}

func (c *grpcComm) Irecv(from int, tag int) karta.RecvHandle {
	return &recvReq{mb: c.node.mb, from: from, tag: tag}
}

// grpcSend completes when the unary delivery has been acknowledged.
type grpcSend struct {
	done chan struct{}
}

// Test reports completion without blocking.
func (h *grpcSend) Test() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the delivery is acknowledged.
func (h *grpcSend) Wait() { <-h.done }
