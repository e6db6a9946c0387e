package feed

import (
	"sync/atomic"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer applies observations. *presence.Registry satisfies it.
type Observer interface {
	Observe(obs presence.Observation)
	Lookup(addr presence.MAC) (presence.DeviceView, bool)
}

// Stats are cumulative ingest counters.
//
// Received = Accepted + Rejected + Malformed.
type Stats struct {
	Received  uint64 `json:"received"`
	Accepted  uint64 `json:"accepted"`
	Rejected  uint64 `json:"rejected"`
	Malformed uint64 `json:"malformed"`
}

// Ingestor decodes, classifies and observes advertisements.
// It is safe for concurrent use by several sources.
type Ingestor struct {
	classifier *presence.Classifier
	observer   Observer
	clock      presence.Clock
	logger     Logger

	received  atomic.Uint64
	accepted  atomic.Uint64
	rejected  atomic.Uint64
	malformed atomic.Uint64
}

// NewIngestor creates an ingestor. A nil classifier uses the default
// classifier.
func NewIngestor(classifier *presence.Classifier, observer Observer, clock presence.Clock) *Ingestor {
	if classifier == nil {
		classifier = presence.DefaultClassifier()
	}
	return &Ingestor{
		classifier: classifier,
		observer:   observer,
		clock:      clock,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// HandleMessage decodes and ingests one gateway message. It reports
// whether the advertisement was accepted.
func (i *Ingestor) HandleMessage(source string, payload []byte) bool {
	adv, err := Decode(payload)
	if err != nil {
		i.received.Add(1)
		i.malformed.Add(1)
		i.logger.Debug("malformed advertisement dropped", "source", source, "error", err)
		return false
	}
	return i.Ingest(adv)
}

// Ingest classifies adv and, when it is a trackable beacon, observes it.
func (i *Ingestor) Ingest(adv presence.Advertisement) bool {
	i.received.Add(1)

	tag, ok := i.classifier.Classify(adv)
	if !ok {
		i.rejected.Add(1)
		return false
	}

	i.observer.Observe(presence.ObservationFrom(adv, tag, i.clock.Monotonic()))
	i.accepted.Add(1)

	if v, found := i.observer.Lookup(adv.Address); found {
		i.logger.Debug("beacon detected",
			"address", string(v.Address),
			"name", v.Name(),
			"count", v.DetectionCount,
			"rssi", v.RSSI,
			"trend", v.Trend.String(),
		)
	}
	return true
}

// Stats returns a copy of the counters.
func (i *Ingestor) Stats() Stats {
	return Stats{
		Received:  i.received.Load(),
		Accepted:  i.accepted.Load(),
		Rejected:  i.rejected.Load(),
		Malformed: i.malformed.Load(),
	}
}
