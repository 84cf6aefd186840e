package api

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	bookingServiceName          = "salonbook.booking.v1.BookingService"
	methodListSlots             = "/" + bookingServiceName + "/ListSlots"
	methodSubmitBooking         = "/" + bookingServiceName + "/SubmitBooking"
	methodTransitionAppointment = "/" + bookingServiceName + "/TransitionAppointment"
	methodGetAppointment        = "/" + bookingServiceName + "/GetAppointment"
)

type ListSlotsRequest struct {
	SalonID string `json:"salon_id"`
	Date    string `json:"date"`
}

type SubmitBookingRequest struct {
	SalonID   string `json:"salon_id"`
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type TransitionAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type GetAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// BookingServer is the gRPC surface of the booking services.
type BookingServer interface {
	ListSlots(context.Context, *ListSlotsRequest) (*service.DaySlots, error)
	SubmitBooking(context.Context, *SubmitBookingRequest) (*models.Appointment, error)
	TransitionAppointment(context.Context, *TransitionAppointmentRequest) (*models.Appointment, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*models.Appointment, error)
}

func unaryMethod[Req any, Resp any](fullMethod string, call func(BookingServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: unaryMethod(methodListSlots, BookingServer.ListSlots)},
		{MethodName: "SubmitBooking", Handler: unaryMethod(methodSubmitBooking, BookingServer.SubmitBooking)},
		{MethodName: "TransitionAppointment", Handler: unaryMethod(methodTransitionAppointment, BookingServer.TransitionAppointment)},
		{MethodName: "GetAppointment", Handler: unaryMethod(methodGetAppointment, BookingServer.GetAppointment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salonbook/booking/v1",
}

func RegisterBookingServer(s grpc.ServiceRegistrar, srv BookingServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

type bookingGRPC struct {
	svc    Services
	actors *ActorResolver
}

func NewBookingGRPC(svc Services, actors *ActorResolver) BookingServer {
	return &bookingGRPC{svc: svc, actors: actors}
}

func (b *bookingGRPC) actor(ctx context.Context) (models.Actor, error) {
	actor, err := b.actors.FromContext(ctx)
	if err != nil {
		return models.Actor{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return actor, nil
}

func (b *bookingGRPC) ListSlots(ctx context.Context, req *ListSlotsRequest) (*service.DaySlots, error) {
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, grpcError(fmt.Errorf("%w: invalid date %q", domain.ErrInvalidRequest, req.Date))
	}
	day, err := b.svc.Availability.ListSlotsForDate(ctx, req.SalonID, date)
	if err != nil {
		return nil, grpcError(err)
	}
	return day, nil
}

func (b *bookingGRPC) SubmitBooking(ctx context.Context, req *SubmitBookingRequest) (*models.Appointment, error) {
	actor, err := b.actor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.IsManager() {
		return nil, grpcError(fmt.Errorf("%w: bookings are submitted by clients", domain.ErrForbidden))
	}
	appt, err := b.svc.Booking.Submit(ctx, service.BookingRequest{
		ClientID:  actor.ID,
		SalonID:   req.SalonID,
		ServiceID: req.ServiceID,
		Date:      req.Date,
		Time:      req.Time,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return appt, nil
}

func (b *bookingGRPC) TransitionAppointment(ctx context.Context, req *TransitionAppointmentRequest) (*models.Appointment, error) {
	actor, err := b.actor(ctx)
	if err != nil {
		return nil, err
	}
	target, ok := models.ParseStatus(req.Status)
	if !ok {
		return nil, grpcError(fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, req.Status))
	}
	appt, err := b.svc.Booking.Transition(ctx, actor, req.AppointmentID, target)
	if err != nil {
		return nil, grpcError(err)
	}
	return appt, nil
}

func (b *bookingGRPC) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*models.Appointment, error) {
	actor, err := b.actor(ctx)
	if err != nil {
		return nil, err
	}
	appt, err := b.svc.Booking.GetAppointment(ctx, actor, req.AppointmentID)
	if err != nil {
		return nil, grpcError(err)
	}
	return appt, nil
}

// BookingClient calls BookingService over a connection using the JSON codec.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func (c *BookingClient) ListSlots(ctx context.Context, req *ListSlotsRequest, opts ...grpc.CallOption) (*service.DaySlots, error) {
	out := new(service.DaySlots)
	if err := c.invoke(ctx, methodListSlots, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) SubmitBooking(ctx context.Context, req *SubmitBookingRequest, opts ...grpc.CallOption) (*models.Appointment, error) {
	out := new(models.Appointment)
	if err := c.invoke(ctx, methodSubmitBooking, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) TransitionAppointment(ctx context.Context, req *TransitionAppointmentRequest, opts ...grpc.CallOption) (*models.Appointment, error) {
	out := new(models.Appointment)
	if err := c.invoke(ctx, methodTransitionAppointment, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) GetAppointment(ctx context.Context, req *GetAppointmentRequest, opts ...grpc.CallOption) (*models.Appointment, error) {
	out := new(models.Appointment)
	if err := c.invoke(ctx, methodGetAppointment, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
