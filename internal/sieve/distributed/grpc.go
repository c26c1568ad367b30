package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// codecName is the gRPC content subtype of the collective service.
const codecName = "json"

// serviceName is the fully qualified name of the collective service.
const serviceName = "sieve.distributed.Collective"

const (
	joinMethod     = "/" + serviceName + "/Join"
	exchangeMethod = "/" + serviceName + "/Exchange"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec encodes the collective messages as JSON so the service needs no
// generated protobuf code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

// JoinRequest announces a rank to the hub.
type JoinRequest struct {
	Rank int `json:"rank"`
}

// JoinResponse describes the world the rank joined.
type JoinResponse struct {
	Size              int   `json:"size"`
	CollectiveTimeout int64 `json:"collective_timeout_ms"`
}

// ExchangeRequest is one rank's contribution to a collective step.
type ExchangeRequest struct {
	Rank    int    `json:"rank"`
	Seq     uint64 `json:"seq"`
	Kind    string `json:"kind"`
	Payload []int  `json:"payload"`
}

// ExchangeResponse carries every rank's contribution, indexed by rank.
type ExchangeResponse struct {
	Parts [][]int `json:"parts"`
}

// collectiveServer is the server side of the collective service.
type collectiveServer interface {
	Join(ctx context.Context, req *JoinRequest) (*JoinResponse, error)
	Exchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResponse, error)
}

var collectiveServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*collectiveServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Join", Handler: joinHandler},
		{MethodName: "Exchange", Handler: exchangeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "distributed/grpc.go",
}

func joinHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(collectiveServer).Join(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: joinMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(collectiveServer).Join(ctx, req.(*JoinRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func exchangeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExchangeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(collectiveServer).Exchange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: exchangeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(collectiveServer).Exchange(ctx, req.(*ExchangeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// HubServer exposes a Hub over gRPC.
type HubServer struct {
	hub *Hub
}

// NewHubServer wraps hub.
func NewHubServer(hub *Hub) *HubServer {
	return &HubServer{hub: hub}
}

// Register registers the collective service on s.
func (hs *HubServer) Register(s *grpc.Server) {
	s.RegisterService(&collectiveServiceDesc, hs)
}

// Join validates the rank and returns the world size.
func (hs *HubServer) Join(_ context.Context, req *JoinRequest) (*JoinResponse, error) {
	if req.Rank < 0 || req.Rank >= hs.hub.Size() {
		return nil, status.Errorf(codes.InvalidArgument, "rank %d out of range [0, %d)", req.Rank, hs.hub.Size())
	}
	return &JoinResponse{
		Size:              hs.hub.Size(),
		CollectiveTimeout: hs.hub.Timeout().Milliseconds(),
	}, nil
}

// Exchange forwards a contribution to the hub.
func (hs *HubServer) Exchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResponse, error) {
	parts, err := hs.hub.Exchange(ctx, req.Rank, req.Seq, req.Kind, req.Payload)
	if err != nil {
		return nil, status.Error(codes.Aborted, apperrors.GetErrorMessage(err))
	}
	return &ExchangeResponse{Parts: parts}, nil
}

// ServeHub starts a gRPC server for hub on lis in the background.
// Stop the returned server to release the listener.
func ServeHub(lis net.Listener, hub *Hub, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	NewHubServer(hub).Register(s)
	go func() {
		_ = s.Serve(lis)
	}()
	return s
}

// DialHub creates a client connection to a hub. The connection is
// established lazily on the first call.
func DialHub(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveError, "dial hub "+target, err)
	}
	return conn, nil
}

// NewGRPCCommunicator joins the hub behind conn as rank. Join waits for the
// hub to come up until ctx is done, so ranks may start before the hub.
// Closing the communicator does not close conn.
func NewGRPCCommunicator(ctx context.Context, conn *grpc.ClientConn, rank int) (Communicator, error) {
	resp := new(JoinResponse)
	if err := conn.Invoke(ctx, joinMethod, &JoinRequest{Rank: rank}, resp, grpc.WaitForReady(true)); err != nil {
		return nil, fromStatus("join hub", err)
	}

	return &comm{
		rank: rank,
		size: resp.Size,
		exchange: func(ctx context.Context, seq uint64, kind string, payload []int) ([][]int, error) {
			req := &ExchangeRequest{Rank: rank, Seq: seq, Kind: kind, Payload: payload}
			out := new(ExchangeResponse)
			if err := conn.Invoke(ctx, exchangeMethod, req, out); err != nil {
				return nil, fromStatus(kind, err)
			}
			return out.Parts, nil
		},
	}, nil
}

func fromStatus(op string, err error) error {
	if st, ok := status.FromError(err); ok {
		return apperrors.Newf(apperrors.CodeCollectiveError, "%s: %s", op, st.Message())
	}
	return apperrors.Wrap(apperrors.CodeCollectiveError, op, err)
}

// GRPCWorld runs a hub server on a listener and connects every rank to it
// through gRPC, so all collective traffic crosses the transport even when
// the ranks share a process.
type GRPCWorld struct {
	hub      *Hub
	server   *grpc.Server
	target   string
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns []*grpc.ClientConn
}

// NewGRPCWorld serves a hub for size ranks on lis. Ranks dial target with
// dialOpts; an empty target dials lis.Addr().
func NewGRPCWorld(lis net.Listener, target string, size int, timeout time.Duration, dialOpts ...grpc.DialOption) (*GRPCWorld, error) {
	hub, err := NewHub(size, timeout)
	if err != nil {
		return nil, err
	}
	if target == "" {
		target = lis.Addr().String()
	}
	return &GRPCWorld{
		hub:      hub,
		server:   ServeHub(lis, hub),
		target:   target,
		dialOpts: dialOpts,
	}, nil
}

// Size returns the number of ranks.
func (w *GRPCWorld) Size() int {
	return w.hub.Size()
}

// Comm dials the hub and joins it as rank.
func (w *GRPCWorld) Comm(ctx context.Context, rank int) (Communicator, error) {
	conn, err := DialHub(w.target, w.dialOpts...)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.conns = append(w.conns, conn)
	w.mu.Unlock()

	return NewGRPCCommunicator(ctx, conn, rank)
}

// Close closes every rank connection and stops the server.
func (w *GRPCWorld) Close() error {
	w.mu.Lock()
	conns := w.conns
	w.conns = nil
	w.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		errs = append(errs, conn.Close())
	}
	w.server.Stop()
	return errors.Join(errs...)
}
