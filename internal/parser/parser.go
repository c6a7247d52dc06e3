package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

var (
	ErrUnknownBroker         = errors.New("unsupported broker")
	ErrUnrecognizedStatement = errors.New("could not recognize a brokerage statement in the sheet")
)

// Parser defines the interface for brokerage statement parsers.
type Parser interface {
	// Parse takes the worksheet grid and returns the assembled statement.
	Parse(grid models.Grid) (*models.StatementResult, error)
	// BrokerName returns the human-readable broker name.
	BrokerName() string
}

// New returns the appropriate parser for the given broker type.
func New(broker models.BrokerType, log zerolog.Logger) (Parser, error) {
	switch broker {
	case models.BrokerVTB:
		return &VTBParser{Log: log}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBroker, broker)
	}
}

// ParseBroker maps a user-supplied broker name to a BrokerType.
func ParseBroker(name string) (models.BrokerType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vtb", "втб":
		return models.BrokerVTB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBroker, name)
	}
}

// AutoDetect identifies the statement format from section titles in the grid.
func AutoDetect(grid models.Grid) (models.BrokerType, error) {
	for _, marker := range []string{cashFlowMarker, tradesMarker} {
		if _, ok := findSectionStart(grid, marker); ok {
			return models.BrokerVTB, nil
		}
	}
	return "", ErrUnrecognizedStatement
}

func contains(s, sub string) bool {
	return sub != "" && strings.Contains(s, sub)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if contains(s, sub) {
			return true
		}
	}
	return false
}
