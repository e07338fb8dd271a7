package kafka

import (
    "context"
    "time"

    xlogger "Gavel/pkg/logger"

    "github.com/segmentio/kafka-go"
)

// ConsumerHook defines lifecycle hooks around message handling.
// Hooks can mutate context, message, and payload.
// Returning a non-nil error from BeforeHandle will skip handler execution
// and trigger error processing (OnError, DLQ, and offset commit).
type ConsumerHook interface {
    BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
    AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
    OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is a default hook that does nothing and is fully panic-safe.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
    return ctx, km, data, nil
}

func (NoopHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {}

func (NoopHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {}

type ctxKey string

const ctxStartTime ctxKey = "kafka_hook_start_time"

// LoggingHook logs settlement feed handling: failures always, slow
// messages above SlowThreshold at warn level.
type LoggingHook struct {
    Logger        *xlogger.Logger
    SlowThreshold time.Duration
}

func (h LoggingHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
    return context.WithValue(ctx, ctxStartTime, time.Now()), km, data, nil
}

func (h LoggingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    if err != nil || h.Logger == nil {
        return
    }
    start, ok := ctx.Value(ctxStartTime).(time.Time)
    if !ok {
        return
    }
    if elapsed := time.Since(start); h.SlowThreshold > 0 && elapsed > h.SlowThreshold {
        h.Logger.Warn("slow settlement message",
            xlogger.String("topic", topic),
            xlogger.Int("partition", km.Partition),
            xlogger.Int64("offset", km.Offset),
            xlogger.Duration("elapsed", elapsed))
    }
}

func (h LoggingHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    if h.Logger == nil {
        return
    }
    h.Logger.Error("settlement message failed",
        xlogger.String("topic", topic),
        xlogger.Int("partition", km.Partition),
        xlogger.Int64("offset", km.Offset),
        xlogger.Error(err))
}
