// Package grpc exposes event search over gRPC.
//
// Messages are google.protobuf.Struct values so that clients can call the
// service without generated stubs:
//
//	request:  {keyword, location, category, size}
//	response: {results: [...], sources: {external, internal}, request_id}
package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/search"
)

// Service and method names on the wire.
const (
	ServiceName     = "meeteasy.v1.SearchService"
	SearchMethod    = "/" + ServiceName + "/Search"
	requestIDKey    = "x-request-id"
	maxGRPCPageSize = 200
)

// Searcher runs a search.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// SearchServer implements meeteasy.v1.SearchService.
type SearchServer struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewSearchServer creates a new gRPC search server.
func NewSearchServer(searcher Searcher, logger *zap.Logger) *SearchServer {
	return &SearchServer{searcher: searcher, logger: logging.OrNop(logger)}
}

// Search handles a search call.
func (s *SearchServer) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)

	q, err := queryFromStruct(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.searcher.Search(ctx, q)
	if err != nil {
		s.logger.Error("grpc search failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, toStatus(err)
	}

	out, err := responseToStruct(resp, requestID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func queryFromStruct(req *structpb.Struct) (search.Query, error) {
	fields := req.GetFields()
	str := func(name string) string {
		return strings.TrimSpace(fields[name].GetStringValue())
	}

	q := search.Query{
		Keyword:  str("keyword"),
		Location: str("location"),
		Category: str("category"),
	}
	if q.IsEmpty() {
		return q, status.Error(codes.InvalidArgument, "keyword, location or category is required")
	}

	if v, ok := fields["size"]; ok {
		size := v.GetNumberValue()
		if size != float64(int(size)) || size <= 0 || size > maxGRPCPageSize {
			return q, status.Error(codes.InvalidArgument, "size must be between 1 and 200")
		}
		q.PageSize = int(size)
	}
	return q, nil
}

func responseToStruct(resp *search.Response, requestID string) (*structpb.Struct, error) {
	results := make([]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"source":   r.Source,
			"id":       r.ID,
			"name":     r.Name,
			"date":     r.Date,
			"time":     r.Time,
			"venue":    r.Venue,
			"image":    r.Image,
			"url":      r.URL,
			"category": r.Category,
		})
	}

	sources := make(map[string]interface{}, len(resp.Sources))
	for name, st := range resp.Sources {
		sources[name] = string(st)
	}

	return structpb.NewStruct(map[string]interface{}{
		"results":    results,
		"sources":    sources,
		"request_id": requestID,
	})
}

// toStatus maps a structured error onto a gRPC status.
func toStatus(err error) error {
	switch apperrors.GetCategory(err) {
	case apperrors.ErrCategoryValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperrors.ErrCategoryUpstream:
		return status.Error(codes.Unavailable, err.Error())
	}
	if apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		return status.Error(codes.PermissionDenied, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

// extractRequestID extracts the request ID from gRPC metadata or generates a new one.
func extractRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if ids := md.Get(requestIDKey); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.New().String()
}

func searchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*SearchServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SearchMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*SearchServer).Search(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// SearchServiceDesc describes meeteasy.v1.SearchService.
var SearchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*interface {
		Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: searchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meeteasy/v1/search.proto",
}

// NewServer creates a gRPC server with the search service registered.
func NewServer(s *SearchServer, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	logger = logging.OrNop(logger)
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&SearchServiceDesc, s)
	return srv
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		logger.Debug("grpc call",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()))
		return resp, err
	}
}
