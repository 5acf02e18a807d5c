package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

type fakeBroker struct {
	fakeMQTT
	handler mqtt.MessageHandler
	subErr  error
}

func (b *fakeBroker) SubscribeCommands(h mqtt.MessageHandler) error {
	if b.subErr != nil {
		return b.subErr
	}
	b.handler = h
	return nil
}

func TestCommandSubscriber(t *testing.T) {
	topics := mqtt.Topics{VehicleID: "vehicle-001"}
	broker := &fakeBroker{}
	store := vehicle.NewStore()

	var sources []command.Source
	store.OnUpdate(func(ctx context.Context, _ vehicle.Update) {
		sources = append(sources, command.SourceFrom(ctx))
	})

	sub := NewCommandSubscriber(broker, command.NewProcessor(store, nil))
	if err := sub.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := broker.handler
	if handler == nil {
		t.Fatal("command topic not subscribed")
	}

	tests := []struct {
		name        string
		payload     string
		wantErr     bool
		wantSuccess bool
	}{
		{"valid", `{"request_id":"r1","action":"climate_set_fan_speed","parameters":{"speed":5}}`, false, true},
		{"no parameters", `{"action":"lights_dim"}`, false, true},
		{"rejected by executor", `{"action":"lights_set_color","parameters":{"color":"pink"}}`, false, false},
		{"missing action", `{"parameters":{}}`, true, false},
		{"not json", `turn on`, true, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(topics.Command(), []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("error = %v, want ErrInvalidCommand", err)
			}

			if broker.count() != i+1 {
				t.Fatalf("result publishes = %d, want %d", broker.count(), i+1)
			}
			res, ok := broker.payloads[i].(CommandResult)
			if !ok {
				t.Fatalf("payload type %T", broker.payloads[i])
			}
			if broker.kinds[i] != "result" {
				t.Errorf("published as %s, want result", broker.kinds[i])
			}
			if res.Success != tt.wantSuccess {
				t.Errorf("result = %+v", res)
			}
		})
	}

	if store.Snapshot().Climate.FanSpeed != 5 {
		t.Errorf("fan speed = %d, want 5", store.Snapshot().Climate.FanSpeed)
	}
	if first, _ := broker.payloads[0].(CommandResult); first.RequestID != "r1" {
		t.Errorf("request id = %q", first.RequestID)
	}
	for _, src := range sources {
		if src != command.SourceMQTT {
			t.Errorf("source = %q, want mqtt", src)
		}
	}
}

func TestCommandSubscriber_StartError(t *testing.T) {
	broker := &fakeBroker{subErr: mqtt.ErrNotConnected}
	sub := NewCommandSubscriber(broker, command.NewProcessor(vehicle.NewStore(), nil))

	if err := sub.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestDecodeCommand(t *testing.T) {
	msg, err := DecodeCommand([]byte(`{"action":"  seats_heat_on ","parameters":{"seat":"passenger"},"extra":true}`))
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if msg.Action != "seats_heat_on" || msg.Parameters["seat"] != "passenger" {
		t.Errorf("msg = %+v", msg)
	}

	if _, err := DecodeCommand([]byte(`{"action":42}`)); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("numeric action error = %v", err)
	}
}
