package api

import (
	"context"

	"github.com/nightvibe/nightvibe/internal/domain"
	"google.golang.org/grpc"
)

const defaultPageLimit = 20

// Catalog is the REST surface of the discover screens.
type Catalog interface {
	ExploreEvents(ctx context.Context, page, limit int) ([]domain.Event, error)
	JoinEvent(ctx context.Context, eventID string) error
	Vendors(ctx context.Context, page, limit int, city string) ([]domain.Vendor, error)
	Guides(ctx context.Context, city string) ([]domain.Guide, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// DiscoverServer is the browse half of the control API.
type DiscoverServer interface {
	ExploreEvents(context.Context, *PageRequest) (*EventsResponse, error)
	JoinEvent(context.Context, *IDRequest) (*Empty, error)
	ListVendors(context.Context, *PageRequest) (*VendorsResponse, error)
	ListGuides(context.Context, *PageRequest) (*GuidesResponse, error)
	Stats(context.Context, *Empty) (*domain.Stats, error)
}

// DiscoverService implements DiscoverServer.
type DiscoverService struct {
	catalog Catalog
}

// NewDiscoverService creates a new discover service.
func NewDiscoverService(catalog Catalog) *DiscoverService {
	return &DiscoverService{catalog: catalog}
}

func page(req *PageRequest) (int, int) {
	p, l := req.Page, req.Limit
	if p < 1 {
		p = 1
	}
	if l < 1 {
		l = defaultPageLimit
	}
	return p, l
}

func (s *DiscoverService) ExploreEvents(ctx context.Context, req *PageRequest) (*EventsResponse, error) {
	p, l := page(req)
	events, err := s.catalog.ExploreEvents(ctx, p, l)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EventsResponse{Events: events}, nil
}

func (s *DiscoverService) JoinEvent(ctx context.Context, req *IDRequest) (*Empty, error) {
	if req.ID == "" {
		return nil, invalid("event id is required")
	}
	if err := s.catalog.JoinEvent(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *DiscoverService) ListVendors(ctx context.Context, req *PageRequest) (*VendorsResponse, error) {
	p, l := page(req)
	vendors, err := s.catalog.Vendors(ctx, p, l, req.City)
	if err != nil {
		return nil, toStatus(err)
	}
	return &VendorsResponse{Vendors: vendors}, nil
}

func (s *DiscoverService) ListGuides(ctx context.Context, req *PageRequest) (*GuidesResponse, error) {
	guides, err := s.catalog.Guides(ctx, req.City)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GuidesResponse{Guides: guides}, nil
}

func (s *DiscoverService) Stats(ctx context.Context, _ *Empty) (*domain.Stats, error) {
	st, err := s.catalog.Stats(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return st, nil
}

const discoverServiceName = "DiscoverService"

// DiscoverServiceDesc describes DiscoverServer to grpc.Server.RegisterService.
var DiscoverServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + discoverServiceName,
	HandlerType: (*DiscoverServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(discoverServiceName, "ExploreEvents", DiscoverServer.ExploreEvents),
		unary(discoverServiceName, "JoinEvent", DiscoverServer.JoinEvent),
		unary(discoverServiceName, "ListVendors", DiscoverServer.ListVendors),
		unary(discoverServiceName, "ListGuides", DiscoverServer.ListGuides),
		unary(discoverServiceName, "Stats", DiscoverServer.Stats),
	},
}

// Register adds every service of the control API to srv.
func Register(srv *grpc.Server, sess SessionServer, chats ChatServer, pay PaymentServer, disc DiscoverServer) {
	srv.RegisterService(&SessionServiceDesc, sess)
	srv.RegisterService(&ChatServiceDesc, chats)
	srv.RegisterService(&PaymentServiceDesc, pay)
	srv.RegisterService(&DiscoverServiceDesc, disc)
}
