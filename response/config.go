package response

import (
	"fmt"

	pkgerrors "github.com/careroute/interlink/errors"
)

// Mode selects how a channel answers its origin once a message has been
// handled. Modes are mutually exclusive per channel.
type Mode string

const (
	// ModeNone sends nothing back.
	ModeNone Mode = "none"
	// ModePreProcessing answers from the status at receipt, before any
	// filtering or dispatch has happened.
	ModePreProcessing Mode = "pre_processing"
	// ModePostSource answers from the source connector message's status
	// after its own filter/transform, ignoring destination outcomes.
	ModePostSource Mode = "post_source"
	// ModeDestinationsCompleted reconciles all destination outcomes into
	// one status by precedence once every destination has been attempted.
	ModeDestinationsCompleted Mode = "destinations_completed"
	// ModeNamed returns the value a script stored in the source message's
	// responseMap under ResponseKey.
	ModeNamed Mode = "named"
)

// Config parameterizes response selection for one channel.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`

	// ResponseKey names the responseMap entry consulted in named mode.
	ResponseKey string `json:"responseKey,omitempty" yaml:"responseKey,omitempty"`

	// DestinationCount is the number of destinations configured for the
	// channel. destinations_completed mode compares it against the number
	// of destination outcomes actually recorded.
	DestinationCount int `json:"destinationCount,omitempty" yaml:"destinationCount,omitempty"`
}

// DefaultConfig returns a configuration that sends no response.
func DefaultConfig() Config {
	return Config{Mode: ModeNone}
}

// withDefaults maps the zero Mode to none.
func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeNone
	}
	return c
}

// Validate fails fast on a mode missing its required parameter. Selection
// never starts on an invalid configuration.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch c.Mode {
	case ModeNone, ModePreProcessing, ModePostSource:
	case ModeDestinationsCompleted:
		if c.DestinationCount < 1 {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "response.Config", "Validate",
				fmt.Sprintf("destinations_completed mode requires a destination count, got %d", c.DestinationCount))
		}
	case ModeNamed:
		if c.ResponseKey == "" {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "response.Config", "Validate",
				"named mode requires a response key")
		}
	default:
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "response.Config", "Validate",
			fmt.Sprintf("unknown response mode %q", c.Mode))
	}
	return nil
}
