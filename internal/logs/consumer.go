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
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

const (
	// maxCycles is how many recent cycles keep their log lines
	maxCycles = 20
	// maxEntriesPerCycle caps the lines kept for one cycle
	maxEntriesPerCycle = 500
)

// Consumer receives correlated log batches from arbor's context channel,
// keeps the lines of recent cycles in memory and republishes them as events.
type Consumer struct {
	eventService  interfaces.EventService
	logger        arbor.ILogger
	channel       chan []arbormodels.LogEvent
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	minEventLevel arbor.LogLevel

	mu     sync.RWMutex
	cycles map[string][]models.CycleLogEntry
	order  []string // cycle IDs, oldest first
}

// NewConsumer creates a new log consumer
func NewConsumer(eventService interfaces.EventService, logger arbor.ILogger, minEventLevel string) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		eventService:  eventService,
		logger:        logger,
		channel:       make(chan []arbormodels.LogEvent, 10),
		ctx:           ctx,
		cancel:        cancel,
		minEventLevel: parseLogLevel(minEventLevel),
		cycles:        make(map[string][]models.CycleLogEntry),
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

// GetChannel returns the channel arbor sends log batches to
func (c *Consumer) GetChannel() chan []arbormodels.LogEvent {
	return c.channel
}

// Start launches the consumer goroutine
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go c.consume()
	return nil
}

// Stop shuts the consumer down
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	c.logger.Info().Msg("Log consumer stopped")
	return nil
}

func (c *Consumer) consume() {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			// Uncorrelated logger so the panic report does not loop back here
			c.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Log consumer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-c.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				c.handle(event)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) handle(event arbormodels.LogEvent) {
	// Only cycle-correlated lines are kept; HTTP request logs carry their own IDs
	if !strings.HasPrefix(event.CorrelationID, "cycle_") || !c.shouldKeep(event.Level) {
		return
	}

	entry := transformEvent(event)
	c.store(entry)

	if c.eventService != nil {
		err := c.eventService.Publish(c.ctx, interfaces.Event{
			Type: interfaces.EventCycleLog,
			Payload: map[string]interface{}{
				"cycle_id":  entry.CycleID,
				"level":     entry.Level,
				"message":   entry.Message,
				"timestamp": entry.Timestamp,
			},
		})
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to publish cycle log event")
		}
	}
}

func (c *Consumer) shouldKeep(level log.Level) bool {
	return arborlevels.FromLogLevel(level) >= c.minEventLevel
}

func (c *Consumer) store(entry models.CycleLogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, exists := c.cycles[entry.CycleID]
	if !exists {
		c.order = append(c.order, entry.CycleID)
		if len(c.order) > maxCycles {
			delete(c.cycles, c.order[0])
			c.order = c.order[1:]
		}
	}
	if len(entries) >= maxEntriesPerCycle {
		entries = entries[1:]
	}
	c.cycles[entry.CycleID] = append(entries, entry)
}

// CycleLogs returns the retained lines for one cycle, oldest first
func (c *Consumer) CycleLogs(cycleID string) []models.CycleLogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.CycleLogEntry(nil), c.cycles[cycleID]...)
}

// CycleIDs returns the cycles with retained logs, newest first
func (c *Consumer) CycleIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.order))
	for i, id := range c.order {
		ids[len(c.order)-1-i] = id
	}
	return ids
}

// transformEvent flattens an arbor event into a log entry with its fields appended
func transformEvent(event arbormodels.LogEvent) models.CycleLogEntry {
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

	return models.CycleLogEntry{
		CycleID:   event.CorrelationID,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Level:     convertTo3Letter(event.Level.String()),
		Message:   message,
	}
}
