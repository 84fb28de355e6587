package bridge

import (
	"fmt"
	"regexp"
	"strings"
)

const tokenPattern = `(?:\w|-|\.)+`

// ParseError reports a topic that does not match the expected
// <prefix>/<node>/<measurement> shape.
type ParseError struct {
	Topic string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("topic %q does not match <prefix>/<node>/<measurement>", e.Topic)
}

// Identity is the (node, measurement) pair extracted from a topic.
type Identity struct {
	Node        string
	Measurement string
}

// TopicParser extracts node and measurement identity from hierarchical topic
// paths under a fixed prefix.
type TopicParser struct {
	prefix string
	re     *regexp.Regexp
	nodes  map[string]struct{}
}

// NormalizePrefix ensures a non-empty prefix has exactly one leading slash
// and no trailing slash.
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		return prefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}

// NewTopicParser builds a parser for the given prefix and known node names.
// The prefix is normalized once here; nodeNames is the allow-list consulted
// by KnownNode.
func NewTopicParser(prefix string, nodeNames []string) *TopicParser {
	prefix = NormalizePrefix(prefix)

	nodes := make(map[string]struct{}, len(nodeNames))
	for _, n := range nodeNames {
		nodes[n] = struct{}{}
	}

	re := regexp.MustCompile(fmt.Sprintf(`^%s/(%s)/(%s)`,
		regexp.QuoteMeta(prefix), tokenPattern, tokenPattern))

	return &TopicParser{prefix: prefix, re: re, nodes: nodes}
}

// Prefix returns the normalized topic prefix.
func (p *TopicParser) Prefix() string {
	return p.prefix
}

// Parse extracts the (node, measurement) identity from topic. Trailing path
// segments beyond the measurement are ignored. A node outside the allow-list
// is not an error; callers check KnownNode and warn.
func (p *TopicParser) Parse(topic string) (Identity, error) {
	m := p.re.FindStringSubmatch(topic)
	if m == nil {
		return Identity{}, &ParseError{Topic: topic}
	}
	return Identity{Node: m[1], Measurement: m[2]}, nil
}

// KnownNode reports whether nodeName is in the configured allow-list.
func (p *TopicParser) KnownNode(nodeName string) bool {
	_, ok := p.nodes[nodeName]
	return ok
}

// SubscriptionTopics returns one wildcard filter per known node, covering all
// sub-topics under that node.
func (p *TopicParser) SubscriptionTopics(nodeNames []string) []string {
	topics := make([]string, 0, len(nodeNames))
	for _, n := range nodeNames {
		topics = append(topics, fmt.Sprintf("%s/%s/#", p.prefix, n))
	}
	return topics
}
