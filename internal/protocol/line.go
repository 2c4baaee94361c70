package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyLine is returned by ParseCommandLine for blank and comment lines.
var ErrEmptyLine = errors.New("empty command line")

// ParseCommandLine parses the human-typed form of a command: a command type
// optionally followed by a JSON params object, e.g.
//
//	create_object {"type": "SPHERE", "name": "Ball"}
//
// Lines starting with '#' are comments.
func ParseCommandLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Command{}, ErrEmptyLine
	}

	commandType, rest, _ := strings.Cut(line, " ")
	cmd := Command{Type: commandType}
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := json.Unmarshal([]byte(rest), &cmd.Params); err != nil {
			return Command{}, fmt.Errorf("params must be a JSON object: %v", err)
		}
	}
	return cmd, nil
}
