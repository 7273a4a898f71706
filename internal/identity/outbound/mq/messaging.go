package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/facegate/internal/identity/usecase"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"github.com/shandysiswandi/facegate/internal/pkg/messaging"
	"github.com/shandysiswandi/facegate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishFaceEnrolled(ctx context.Context, msg usecase.FaceEnrolledEvent) error {
	return m.publish(ctx, "PublishFaceEnrolled", event.FaceEnrolledDestination, msg.Identity, event.FaceEnrolledMessage{
		Identity:   msg.Identity,
		Replaced:   msg.Replaced,
		EnrolledAt: msg.EnrolledAt,
	})
}

func (m *Messaging) PublishAccountRemoved(ctx context.Context, msg usecase.AccountRemovedEvent) error {
	return m.publish(ctx, "PublishAccountRemoved", event.AccountRemovedDestination, msg.Identity, event.AccountRemovedMessage{
		Identity:  msg.Identity,
		RemovedBy: msg.RemovedBy,
		Leftover:  msg.Leftover,
	})
}

func (m *Messaging) PublishVerificationFinished(ctx context.Context, msg usecase.VerificationFinishedEvent) error {
	return m.publish(ctx, "PublishVerificationFinished", event.VerificationFinishedDestination, msg.Identity, event.VerificationFinishedMessage{
		Identity:  msg.Identity,
		SessionID: msg.SessionID,
		Status:    msg.Status,
		Distance:  msg.Distance,
		Ticks:     msg.Ticks,
		At:        msg.At,
	})
}

func (m *Messaging) publish(ctx context.Context, name, destination, key string, payload any) error {
	ctx, span := m.ins.Tracer("identity.outbound.mq").Start(ctx, name)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, destination, messaging.Message{
		Key:     []byte(key),
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: instrument.GetCorrelationID(ctx)},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
