package event

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository/memory"
	"github.com/jwalitptl/carelink-api/pkg/logger"
)

func TestEmitWritesPendingEvent(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Outbox(), logger.Nop())

	requestID := uuid.New()
	require.NoError(t, svc.Emit(context.Background(), model.EventPrescriptionUploaded,
		model.PrescriptionUploadedPayload{RequestID: requestID}))

	events := store.AllOutbox()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPrescriptionUploaded, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.JSONEq(t, `{"requestId":"`+requestID.String()+`"}`, string(events[0].Payload))
}

func TestEmitRejectsUnencodablePayload(t *testing.T) {
	svc := NewService(memory.NewStore().Outbox(), logger.Nop())
	err := svc.Emit(context.Background(), "bad", map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}
