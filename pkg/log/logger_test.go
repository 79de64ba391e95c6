package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	originalLogger zerolog.Logger
	testOutput     *bytes.Buffer
}

// SetupTest runs before each test
func (s *LoggerTestSuite) SetupTest() {
	s.originalLogger = Logger
	s.testOutput = &bytes.Buffer{}

	Logger = zerolog.New(s.testOutput).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
}

// TearDownTest runs after each test
func (s *LoggerTestSuite) TearDownTest() {
	Logger = s.originalLogger
}

// TestInfoLevel tests that Info events reach the output.
func (s *LoggerTestSuite) TestInfoLevel() {
	Info().Str("storage", "primary").Msg("test info message")

	output := s.testOutput.String()
	s.Contains(output, "test info message")
	s.Contains(output, `"storage":"primary"`)
	s.Contains(output, `"level":"info"`)
}

// TestWarnLevel tests that Warn events reach the output.
func (s *LoggerTestSuite) TestWarnLevel() {
	Warn().Msg("test warn message")

	output := s.testOutput.String()
	s.Contains(output, "test warn message")
	s.Contains(output, `"level":"warn"`)
}

// TestErrorLevel tests that Error events reach the output.
func (s *LoggerTestSuite) TestErrorLevel() {
	Error().Msg("test error message")

	output := s.testOutput.String()
	s.Contains(output, "test error message")
	s.Contains(output, `"level":"error"`)
}

// TestDebugSuppressedAtInfoLevel tests level filtering.
func (s *LoggerTestSuite) TestDebugSuppressedAtInfoLevel() {
	Logger = Logger.Level(zerolog.InfoLevel)

	Debug().Msg("should not appear")
	s.False(strings.Contains(s.testOutput.String(), "should not appear"))
}

// TestLoggerSuite runs the test suite
func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
