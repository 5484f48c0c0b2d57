package location

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// SerialFeed streams fixes from a GPS device connected via serial port.
type SerialFeed struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
	logger   zerolog.Logger
}

// NewSerialFeed creates a new SerialFeed for the given port and baud rate.
func NewSerialFeed(port string, baudRate int, logger zerolog.Logger) *SerialFeed {
	return &SerialFeed{
		port:     port,
		baudRate: baudRate,
		logger:   logger,
	}
}

// Subscribe opens the serial port and forwards every valid fix until ctx is done.
func (d *SerialFeed) Subscribe(ctx context.Context, handler Handler) error {
	s, err := serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open GPS port %s: %w", d.port, err)
	}

	// closing the port unblocks the scanner
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer func() {
		if stop() {
			_ = s.Close()
		}
	}()

	err = ScanSentences(ctx, s, handler, d.logger)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ScanSentences reads NMEA sentences line by line and hands valid GGA/RMC fixes to handler.
func ScanSentences(ctx context.Context, r io.Reader, handler Handler, logger zerolog.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			logger.Debug().Err(err).Str("sentence", line).Msg("Skipping unparsable NMEA sentence")
			continue
		}

		loc, ok := fixFromSentence(sentence)
		if !ok {
			continue
		}
		coord := loc.Coordinate()
		if err := coord.Validate(); err != nil {
			logger.Warn().Err(err).Msg("Discarding invalid GPS fix")
			continue
		}
		handler(coord)
	}

	return scanner.Err()
}

func fixFromSentence(sentence nmea.Sentence) (Location, bool) {
	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return Location{}, false
		}
		// HDOP is a proxy for accuracy
		return Location{Latitude: s.Latitude, Longitude: s.Longitude, Accuracy: s.HDOP}, true
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return Location{}, false
		}
		return Location{Latitude: s.Latitude, Longitude: s.Longitude}, true
	}
	return Location{}, false
}
