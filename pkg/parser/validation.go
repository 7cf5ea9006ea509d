package parser

import (
	"strings"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

// MinOptions is the smallest number of options a poll may have.
const MinOptions = 2

type rule func(*pollmodels.ParsedPoll) []string

var rules = []rule{
	func(p *pollmodels.ParsedPoll) []string {
		if strings.TrimSpace(p.Question.Body) == "" {
			return []string{"The question must not be empty!"}
		}
		return nil
	},
	func(p *pollmodels.ParsedPoll) []string {
		if len(p.Options) < MinOptions {
			return []string{"There must be at least two options for answering the poll."}
		}
		return nil
	},
	func(p *pollmodels.ParsedPoll) []string {
		for _, o := range p.Options {
			if strings.TrimSpace(o) == "" {
				return []string{"The option must not be empty!"}
			}
		}
		return nil
	},
}

// Validate returns the violated constraints of the poll, or nil when it is valid.
func Validate(p *pollmodels.ParsedPoll) []string {
	var violations []string
	for _, r := range rules {
		violations = append(violations, r(p)...)
	}
	return violations
}
