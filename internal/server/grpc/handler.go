package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/server/credential"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) CreateDelivery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	purchaserID, documentID, purchaseID, err := tripleFields(req)
	if err != nil {
		return nil, err
	}

	grant, err := s.delivery.CreateDelivery(ctx, purchaserID, documentID, purchaseID, models.DeliveryOptions{
		DeviceFingerprint: stringField(req, "device_fingerprint"),
	})
	if err != nil {
		return nil, s.statusError(ctx, "create delivery", err)
	}

	s.logger.Info(ctx, "Delivery created", "download_id", grant.DownloadID, "token", credential.Fragment(grant.Token))
	return newStruct(map[string]any{
		"download_id": grant.DownloadID,
		"token":       grant.Token,
		"expires_at":  formatTime(grant.ExpiresAt),
	})
}

func (s *GRPCServer) ResolveDelivery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := requireString(req, "token")
	if err != nil {
		return nil, err
	}

	res, err := s.delivery.ResolveDelivery(ctx, token, models.RequestInfo{
		Origin:            stringField(req, "origin"),
		ClientSignature:   stringField(req, "client_signature"),
		DeviceFingerprint: stringField(req, "device_fingerprint"),
	})
	if err != nil {
		return nil, s.statusError(ctx, "resolve delivery", err)
	}

	return newStruct(map[string]any{
		"retrieval_handle":  res.RetrievalHandle,
		"file_name":         res.FileName,
		"file_size":         res.FileSize,
		"access_count":      res.AccessCount,
		"handle_expires_at": formatTime(res.HandleExpiresAt),
	})
}

func (s *GRPCServer) GetAnalytics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from, err := timeField(req, "from")
	if err != nil {
		return nil, err
	}
	to, err := timeField(req, "to")
	if err != nil {
		return nil, err
	}

	rep, err := s.delivery.GetAnalytics(ctx, models.AnalyticsFilter{
		From:        from,
		To:          to,
		DocumentID:  stringField(req, "document_id"),
		RecentLimit: int(req.GetFields()["recent_limit"].GetNumberValue()),
	})
	if err != nil {
		return nil, s.statusError(ctx, "get analytics", err)
	}

	return toStruct(rep)
}

func (s *GRPCServer) SetBlocked(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	purchaserID, documentID, purchaseID, err := tripleFields(req)
	if err != nil {
		return nil, err
	}

	blocked := req.GetFields()["blocked"].GetBoolValue()
	e, err := s.delivery.SetBlocked(ctx, purchaserID, documentID, purchaseID, blocked, stringField(req, "reason"))
	if err != nil {
		return nil, s.statusError(ctx, "set blocked", err)
	}

	s.logger.Info(ctx, "Block state changed", "entry_id", e.ID, "blocked", e.Blocked)

	out := map[string]any{
		"entry_id":       e.ID,
		"blocked":        e.Blocked,
		"blocked_reason": e.BlockedReason,
		"access_count":   e.AccessCount,
		"flags":          stringsToAny(e.Flags),
	}
	if e.BlockedAt != nil {
		out["blocked_at"] = formatTime(*e.BlockedAt)
	}
	return newStruct(out)
}

func tripleFields(req *structpb.Struct) (purchaserID, documentID, purchaseID string, err error) {
	if purchaserID, err = requireString(req, "purchaser_id"); err != nil {
		return
	}
	if documentID, err = requireString(req, "document_id"); err != nil {
		return
	}
	purchaseID, err = requireString(req, "purchase_id")
	return
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requireString(req *structpb.Struct, name string) (string, error) {
	v := stringField(req, name)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	return v, nil
}

func timeField(req *structpb.Struct, name string) (time.Time, error) {
	v := stringField(req, name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s: want RFC 3339", name)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return newStruct(m)
}

func (s *GRPCServer) statusError(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	if st.Code() == codes.Internal {
		s.logger.Error(ctx, fmt.Sprintf("%s failed", op), "error", err.Error())
	} else {
		s.logger.Debug(ctx, fmt.Sprintf("%s rejected", op), "code", st.Code().String(), "error", err.Error())
	}
	return st.Err()
}
