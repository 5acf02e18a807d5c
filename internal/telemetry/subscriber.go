package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// ErrInvalidCommand is returned for command payloads that cannot be
// decoded or name no action.
var ErrInvalidCommand = errors.New("invalid command payload")

// commandTimeout bounds one MQTT-sourced execution.
const commandTimeout = 10 * time.Second

// Broker is the MQTT surface the subscriber needs. *mqtt.Client
// implements it.
type Broker interface {
	SubscribeCommands(handler mqtt.MessageHandler) error
	PublishResult(result any) error
}

// CommandRunner executes structured commands. *command.Processor
// implements it.
type CommandRunner interface {
	Execute(ctx context.Context, src command.Source, action string, params map[string]any) vehicle.Result
}

// CommandMessage is the payload expected on vehicle/{id}/command.
type CommandMessage struct {
	RequestID  string         `mapstructure:"request_id"`
	Action     string         `mapstructure:"action"`
	Parameters map[string]any `mapstructure:"parameters"`
}

// CommandResult is published on vehicle/{id}/result for every command.
type CommandResult struct {
	RequestID string         `json:"request_id,omitempty"`
	Action    string         `json:"action"`
	Success   bool           `json:"success"`
	Changes   map[string]any `json:"changes"`
	Error     string         `json:"error,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// CommandSubscriber executes commands received over MQTT, exactly like a
// manual_control frame, and reports each result.
type CommandSubscriber struct {
	broker Broker
	runner CommandRunner
	logger Logger
}

// NewCommandSubscriber creates a subscriber feeding r from b.
func NewCommandSubscriber(b Broker, r CommandRunner) *CommandSubscriber {
	return &CommandSubscriber{
		broker: b,
		runner: r,
		logger: noopLogger{},
	}
}

// SetLogger sets the subscriber logger.
func (s *CommandSubscriber) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// Start subscribes to the command topic.
func (s *CommandSubscriber) Start() error {
	if err := s.broker.SubscribeCommands(s.handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	s.logger.Info("listening for MQTT commands")
	return nil
}

// handle is the MQTT message handler. Decode failures are answered on the
// result topic and returned so the client logs them.
func (s *CommandSubscriber) handle(_ string, payload []byte) error {
	msg, err := DecodeCommand(payload)
	if err != nil {
		s.reply(CommandResult{Action: msg.Action, RequestID: msg.RequestID, Changes: map[string]any{}, Error: err.Error()})
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := s.runner.Execute(ctx, command.SourceMQTT, msg.Action, msg.Parameters)
	s.reply(CommandResult{
		RequestID: msg.RequestID,
		Action:    res.Action,
		Success:   res.Success,
		Changes:   res.Changes,
		Error:     res.Error,
	})
	return nil
}

func (s *CommandSubscriber) reply(r CommandResult) {
	r.Timestamp = vehicle.UnixSeconds(time.Now())
	if err := s.broker.PublishResult(r); err != nil {
		s.logger.Warn("command result publish failed", "action", r.Action, "error", err)
	}
}

// DecodeCommand parses a command payload. Unknown keys are ignored and
// parameters default to an empty map.
func DecodeCommand(payload []byte) (CommandMessage, error) {
	var msg CommandMessage

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if err := mapstructure.Decode(raw, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	msg.Action = strings.TrimSpace(msg.Action)
	if msg.Action == "" {
		return msg, fmt.Errorf("%w: missing action", ErrInvalidCommand)
	}
	if msg.Parameters == nil {
		msg.Parameters = map[string]any{}
	}
	return msg, nil
}
