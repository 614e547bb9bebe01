package router

import (
	"fmt"
	"regexp"
	"strings"
)

const finalAnswer = "Final Answer:"

// StopSequence ends generation before the model invents an observation.
const StopSequence = "\nObservation"

var (
	actionRe          = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyRe      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputOnlyRe = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

// Parsed is the model's next move: either a tool call or a final answer.
type Parsed struct {
	Tool   string
	Input  string
	Final  bool
	Answer string
	Log    string
}

// ParseError carries the observation sent back to the model so it can
// correct its format.
type ParseError struct {
	Observation string
	Text        string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model output: %s", e.Observation)
}

const (
	missingAction      = "Invalid Format: Missing 'Action:' after 'Thought:'"
	missingActionInput = "Invalid Format: Missing 'Action Input:' after 'Action:'"
	bothActionAndFinal = "Invalid Format: the response has both a Final Answer and an Action, give only one"
)

// Parse reads Thought/Action/Action Input or Final Answer text.
func Parse(text string) (Parsed, error) {
	hasFinal := strings.Contains(text, finalAnswer)

	if m := actionRe.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return Parsed{}, &ParseError{Observation: bothActionAndFinal, Text: text}
		}
		input := strings.Trim(strings.TrimSpace(m[2]), `"`)
		return Parsed{
			Tool:  strings.TrimSpace(m[1]),
			Input: input,
			Log:   text,
		}, nil
	}

	if hasFinal {
		parts := strings.Split(text, finalAnswer)
		return Parsed{
			Final:  true,
			Answer: strings.TrimSpace(parts[len(parts)-1]),
			Log:    text,
		}, nil
	}

	switch {
	case !actionOnlyRe.MatchString(text):
		return Parsed{}, &ParseError{Observation: missingAction, Text: text}
	case !actionInputOnlyRe.MatchString(text):
		return Parsed{}, &ParseError{Observation: missingActionInput, Text: text}
	default:
		return Parsed{}, &ParseError{Observation: "Invalid Format: could not parse the response", Text: text}
	}
}
