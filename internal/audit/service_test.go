package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

const tenantID = "9a4e2d1c-7b3f-4c6a-8e5d-1f2a3b4c5d6e"

type stubStore struct {
	entries        []Entry
	receivedLimit  int
	receivedOffset int
	receivedTenant uuid.UUID
}

func (s *stubStore) InsertAuditLog(_ context.Context, e Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubStore) ListAuditLogs(_ context.Context, tid uuid.UUID, limit, offset int) ([]Entry, error) {
	s.receivedTenant, s.receivedLimit, s.receivedOffset = tid, limit, offset
	return s.entries, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/orders/7/reconcile?source=till", nil)
	req.Header.Set("User-Agent", "till/2.1")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := tenant.With(req.Context(), tenantID)
	ctx = obs.WithRoutePattern(ctx, "/api/v1/orders/{id}/reconcile")
	req = req.WithContext(ctx)

	err := svc.Record(req.Context(), Actor{Kind: ActorKindOperator, Operator: "kasir-01"}, "", "", "7", req, http.StatusOK, nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	e := store.entries[0]
	require.Equal(t, uuid.MustParse(tenantID), e.TenantID)
	require.Equal(t, "operator", e.ActorKind)
	require.Equal(t, "kasir-01", e.Operator)
	require.Equal(t, "POST /api/v1/orders/{id}/reconcile", e.Action)
	require.Equal(t, "orders.{id}.reconcile", e.ResourceType)
	require.Equal(t, "7", e.ResourceID)
	require.Equal(t, "10.0.0.2", e.IP)
	require.Equal(t, "req-123", e.RequestID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(e.Metadata, &meta))
	require.Equal(t, "source=till", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.entries)
}

func TestServiceRecordSkipsWithoutTenant(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.entries)
}

func TestUnknownActorKindIsAnonymous(t *testing.T) {
	require.Equal(t, ActorKindAnonymous, normalizeActorKind("admin"))
	require.Equal(t, ActorKindSystem, normalizeActorKind(ActorKindSystem))
}
