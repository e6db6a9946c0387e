package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	defaultBaudRate     = 115200
	defaultReopenDelay  = 5 * time.Second
	defaultMaxLineBytes = 4096
)

// PortOpener opens the scanner's serial port.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

// OpenSerialPort opens a real serial device.
func OpenSerialPort(path string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(path, mode)
}

// SerialConfig configures a SerialSource.
type SerialConfig struct {
	Port         string
	BaudRate     int
	ReopenDelay  time.Duration
	MaxLineBytes int
}

// SerialSource reads newline-delimited JSON advertisements from a USB BLE
// scanner. When the port fails or closes it is reopened after ReopenDelay
// until the context is cancelled.
type SerialSource struct {
	cfg      SerialConfig
	open     PortOpener
	ingestor *Ingestor
	logger   Logger

	mu   sync.Mutex
	port io.ReadCloser

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewSerialSource creates a serial source. A nil opener uses OpenSerialPort.
func NewSerialSource(cfg SerialConfig, open PortOpener, ingestor *Ingestor) (*SerialSource, error) {
	if cfg.Port == "" {
		return nil, ErrNoPort
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.ReopenDelay <= 0 {
		cfg.ReopenDelay = defaultReopenDelay
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	if open == nil {
		open = OpenSerialPort
	}
	return &SerialSource{
		cfg:      cfg,
		open:     open,
		ingestor: ingestor,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the source.
func (s *SerialSource) SetLogger(logger Logger) {
	s.logger = logger
}

// Mode returns the serial settings used when opening the port (8N1).
func (s *SerialSource) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8, //nolint:mnd // 8N1
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Start begins reading in a background goroutine.
func (s *SerialSource) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop closes the port and waits for the reader to exit.
// Safe to call multiple times.
func (s *SerialSource) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.closePort()
		s.wg.Wait()
	})
}

func (s *SerialSource) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		err := s.readOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("serial scanner disconnected",
			"port", s.cfg.Port,
			"error", err,
			"retry_in", s.cfg.ReopenDelay.String(),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReopenDelay):
		}
	}
}

// readOnce opens the port and reads until it fails, closes, or ctx ends.
func (s *SerialSource) readOnce(ctx context.Context) error {
	port, err := s.open(s.cfg.Port, s.Mode())
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.cfg.Port, err)
	}

	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	defer s.closePort()

	// Unblock the scanner when the context ends.
	stop := context.AfterFunc(ctx, s.closePort)
	defer stop()

	s.logger.Info("serial scanner connected", "port", s.cfg.Port, "baud", s.cfg.BaudRate)

	source := "serial:" + s.cfg.Port
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 0, s.cfg.MaxLineBytes), s.cfg.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.ingestor.HandleMessage(source, line)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("line exceeds %d bytes: %w", s.cfg.MaxLineBytes, err)
		}
		return err
	}
	return io.EOF
}

func (s *SerialSource) closePort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		s.port.Close() //nolint:errcheck // Closing to unblock reads
		s.port = nil
	}
}
