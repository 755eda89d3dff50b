package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
	"github.com/njrgourav11/service-buddy-sub000/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// BookingServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages carrying the same JSON shapes
// as the HTTP API.
const BookingServiceName = "servicebuddy.bookings.v1.BookingService"

// BookingRPCServer is the handler type registered with grpc.
type BookingRPCServer interface {
	invoke(ctx context.Context, m rpcMethod, in *structpb.Struct) (*structpb.Struct, error)
}

type rpcMethod func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result

type bookingRPC struct {
	endpoints *Endpoints
}

var rpcMethods = map[string]rpcMethod{
	"ListServices": func(_ context.Context, e *Endpoints, _ string, _ rpcArgs) Result {
		return e.ListServices()
	},
	"CreateBooking": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		var draft models.BookingDraft
		if err := args.decode(&draft); err != nil {
			return failure(err)
		}
		return e.CreateBooking(ctx, token, draft)
	},
	"GetBooking": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.GetBooking(ctx, token, args.str("booking_id"))
	},
	"ListUserBookings": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		return e.ListUserBookings(ctx, token)
	},
	"ListAllBookings": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		return e.ListAllBookings(ctx, token)
	},
	"ConfirmPayment": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.ConfirmPayment(ctx, token, args.str("booking_id"), args.str("payment_method"), args.str("payment_reference"))
	},
	"VerifyPayment": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.VerifyPayment(ctx, token, args.str("booking_id"))
	},
	"AcceptJob": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.AcceptJob(ctx, token, args.str("booking_id"))
	},
	"AssignTechnician": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.AssignTechnician(ctx, token, args.str("booking_id"), args.str("technician_id"))
	},
	"StartService": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.StartService(ctx, token, args.str("booking_id"))
	},
	"CompleteJob": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.CompleteJob(ctx, token, args.str("booking_id"))
	},
	"CancelBooking": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.CancelBooking(ctx, token, args.str("booking_id"), args.str("reason"))
	},
	"RescheduleBooking": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.RescheduleBooking(ctx, token, args.str("booking_id"), args.str("scheduled_date"), args.str("scheduled_time"))
	},
	"ListOpenJobs": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.ListOpenJobs(ctx, token, args.str("category"))
	},
	"ListTechnicianJobs": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		return e.ListTechnicianJobs(ctx, token)
	},
	"ApplyTechnician": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.ApplyTechnician(ctx, token, args.str("name"), args.str("phone"), args.str("category"))
	},
	"ListTechnicians": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		return e.ListTechnicians(ctx, token)
	},
	"ApproveTechnician": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.ApproveTechnician(ctx, token, args.str("technician_id"), models.TechnicianStatus(args.str("status")))
	},
	"GetStats": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		return e.GetStats(ctx, token)
	},
	"ExportBookings": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		data, res := e.ExportBookings(ctx, token)
		if res.Success {
			// []byte is rendered as base64 by the JSON bridge
			res.Data = data
		}
		return res
	},
	"GetProfile": func(ctx context.Context, e *Endpoints, token string, _ rpcArgs) Result {
		return e.GetProfile(ctx, token)
	},
	"UpdateProfile": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		var upd service.ProfileUpdate
		if err := args.decode(&upd); err != nil {
			return failure(err)
		}
		return e.UpdateProfile(ctx, token, upd)
	},
	"ListNotifications": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.ListNotifications(ctx, token, args.integer("limit"))
	},
	"MarkNotificationRead": func(ctx context.Context, e *Endpoints, token string, args rpcArgs) Result {
		return e.MarkNotificationRead(ctx, token, args.str("notification_id"))
	},
}

// RegisterBookingService attaches the endpoints to s.
func RegisterBookingService(s grpc.ServiceRegistrar, endpoints *Endpoints) {
	desc := grpc.ServiceDesc{
		ServiceName: BookingServiceName,
		HandlerType: (*BookingRPCServer)(nil),
		Metadata:    "servicebuddy/bookings/v1/bookings.proto",
	}
	for name, m := range rpcMethods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    methodHandler(name, m),
		})
	}
	s.RegisterService(&desc, &bookingRPC{endpoints: endpoints})
}

func methodHandler(name string, m rpcMethod) grpc.MethodHandler {
	fullMethod := "/" + BookingServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(BookingRPCServer)
		if interceptor == nil {
			return server.invoke(ctx, m, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return server.invoke(ctx, m, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func (s *bookingRPC) invoke(ctx context.Context, m rpcMethod, in *structpb.Struct) (*structpb.Struct, error) {
	res := m(ctx, s.endpoints, bearerFromMetadata(ctx), rpcArgs(in.AsMap()))
	if !res.Success {
		return nil, status.Error(grpcCode(res), res.Error)
	}
	return toStruct(res)
}

// grpcCode maps a failed result onto a status code.
func grpcCode(res Result) codes.Code {
	switch res.Code {
	case domain.CodeInvalidToken:
		return codes.Unauthenticated
	case domain.CodeRateLimited:
		return codes.ResourceExhausted
	case domain.CodeAlreadyAssigned:
		return codes.Aborted
	}
	switch res.Kind {
	case domain.KindValidation:
		return codes.InvalidArgument
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindUnauthorized:
		return codes.PermissionDenied
	case domain.KindConflict:
		return codes.FailedPrecondition
	case domain.KindUpstream:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

type rpcArgs map[string]any

func (a rpcArgs) str(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

func (a rpcArgs) integer(key string) int {
	if v, ok := a[key].(float64); ok {
		return int(v)
	}
	return 0
}

// decode re-reads the arguments into a typed request.
func (a rpcArgs) decode(dst any) error {
	raw, err := json.Marshal(map[string]any(a))
	if err != nil {
		return domain.Validation("body", "invalid request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Validation("body", "invalid request")
	}
	return nil
}
