package logs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

const defaultRetention = 500

// Consumer receives log batches from arbor's context channel, keeps the most recent
// lines of each session and republishes them as events for the UI.
type Consumer struct {
	eventService  interfaces.EventService
	logger        arbor.ILogger
	channel       chan []arbormodels.LogEvent
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	minEventLevel arbor.LogLevel
	retention     int

	mu       sync.RWMutex
	sessions map[string][]models.LogEntry
}

// NewConsumer creates a consumer keeping up to retention lines per session (0 = default)
func NewConsumer(eventService interfaces.EventService, logger arbor.ILogger, minEventLevel string, retention int) *Consumer {
	if retention <= 0 {
		retention = defaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		eventService:  eventService,
		logger:        logger,
		channel:       make(chan []arbormodels.LogEvent, 10),
		ctx:           ctx,
		cancel:        cancel,
		minEventLevel: parseLogLevel(minEventLevel),
		retention:     retention,
		sessions:      make(map[string][]models.LogEntry),
	}
}

func parseLogLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

func convertTo3Letter(level string) string {
	switch strings.ToUpper(level) {
	case "INFO":
		return "INF"
	case "WARN", "WARNING":
		return "WRN"
	case "ERROR":
		return "ERR"
	case "DEBUG":
		return "DBG"
	default:
		if len(level) == 3 {
			return strings.ToUpper(level)
		}
		return "INF"
	}
}

// GetChannel returns the channel for arbor to send log batches to
func (c *Consumer) GetChannel() chan []arbormodels.LogEvent {
	return c.channel
}

// Start launches the consumer goroutine
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consume()
}

// Stop shuts the consumer down and waits for it to exit
func (c *Consumer) Stop() {
	c.cancel()
	c.wg.Wait()
	c.logger.Info().Msg("Log consumer stopped")
}

// Recent returns up to limit of the newest lines logged by a session, oldest first
func (c *Consumer) Recent(sessionID string, limit int) []models.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.sessions[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]models.LogEntry(nil), entries...)
}

// Forget drops the lines kept for a session
func (c *Consumer) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

func (c *Consumer) consume() {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			// Logged without correlation id so it is not fed back into the channel
			c.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Log consumer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-c.channel:
			if !ok {
				return
			}
			c.process(batch)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) process(batch []arbormodels.LogEvent) {
	for _, event := range batch {
		if event.CorrelationID == "" ||
			strings.HasPrefix(event.Message, "HTTP request") ||
			strings.Contains(event.Message, "WebSocket client") {
			continue
		}

		entry := transformEvent(event)
		c.append(entry)

		if c.eventService != nil && c.shouldPublishEvent(event.Level) {
			c.eventService.Publish(c.ctx, interfaces.Event{
				Type: interfaces.EventLogEntry,
				Payload: map[string]interface{}{
					"session_id": entry.SessionID,
					"level":      entry.Level,
					"message":    entry.Message,
					"timestamp":  entry.Timestamp,
				},
			})
		}
	}
}

func (c *Consumer) append(entry models.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.sessions[entry.SessionID], entry)
	if len(entries) > c.retention {
		entries = entries[len(entries)-c.retention:]
	}
	c.sessions[entry.SessionID] = entries
}

func (c *Consumer) shouldPublishEvent(level log.Level) bool {
	eventLevel := arborlevels.FromLogLevel(level)
	return eventLevel >= c.minEventLevel
}

func transformEvent(event arbormodels.LogEvent) models.LogEntry {
	message := event.Message
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for key := range event.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			message += fmt.Sprintf(" %s=%v", key, event.Fields[key])
		}
	}

	return models.LogEntry{
		Timestamp:     event.Timestamp.Format("15:04:05"),
		FullTimestamp: event.Timestamp.Format(time.RFC3339),
		Level:         convertTo3Letter(event.Level.String()),
		Message:       message,
		SessionID:     event.CorrelationID,
	}
}
