package eventstream

import (
	"context"
	"log/slog"

	"github.com/GoCodeAlone/modular/modules/eventbus/v2"
)

// BridgeEventBus subscribes a Stream to publish every Event it receives
// onto app's eventbus.EventBusModule, using StepTopic as the topic, adapted from the teacher's module.EventBusBridge /
// module.WorkflowEventEmitter — nil-safe and a no-op to construct when the
// eventbus service isn't registered, mirroring the teacher's graceful
// degradation for deployments that don't wire an event bus.
func BridgeEventBus(s *Stream, eb *eventbus.EventBusModule) (unsubscribe func(), err error) {
	if eb == nil {
		return func() {}, nil
	}

	unsub := s.Subscribe(func(ev Event) {
		topic := StepTopic(ev.WorkflowID, ev.Log.NodeID, ev.Lifecycle)
		if pubErr := eb.Publish(context.Background(), topic, ev); pubErr != nil {
			slog.Warn("eventstream: publish failed", "topic", topic, "error", pubErr)
		}
	})
	return unsub, nil
}
