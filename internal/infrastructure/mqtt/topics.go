package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Topic defaults for the traffic relay.
const (
	// TopicPrefix is the base of the stock light topics.
	TopicPrefix = "traffic"

	// maxTopicLength is the MQTT limit on topic length in bytes.
	maxTopicLength = 65535
)

// Topics builds the stock light topics. The CLI takes its flag defaults
// from it; the relay reads its topics from config.
//
//	mqtt.Topics{}.Light(1) // "traffic/light1"
type Topics struct{}

// Light returns the state topic for light slot n.
func (Topics) Light(n int) string {
	return fmt.Sprintf("%s/light%d", TopicPrefix, n)
}

// ValidatePublishTopic checks that topic is usable for publishing: non-empty,
// valid UTF-8, within the MQTT length limit and free of wildcards.
func ValidatePublishTopic(topic string) error {
	if err := validateTopicBytes(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks that filter is a well-formed subscription filter.
// '+' must occupy a whole level and '#' must be the last level.
func ValidateFilter(filter string) error {
	if err := validateTopicBytes(filter); err != nil {
		return err
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: '#' must be the final level in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: '+' must occupy a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

func validateTopicBytes(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if !utf8.ValidString(topic) || strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic must be valid UTF-8 without NUL", ErrInvalidTopic)
	}
	return nil
}
