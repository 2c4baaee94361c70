package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
)

// scriptRunner executes execute_code scripts. Each non-blank line that does
// not start with '#' is a command type optionally followed by a JSON params
// object:
//
//	create_object {"type": "SPHERE", "name": "Ball"}
//	get_scene_info
//
// The first failing line aborts the script.
type scriptRunner struct {
	catalog command.Catalog

	once  sync.Once
	table *command.Table
	err   error
}

// ScriptResult is the execute_code result.
type ScriptResult struct {
	Executed bool         `json:"executed"`
	Results  []LineResult `json:"results"`
}

// LineResult is the outcome of one script line.
type LineResult struct {
	Line   int    `json:"line"`
	Type   string `json:"type"`
	Result any    `json:"result"`
}

func (s *scriptRunner) execute(ctx context.Context, p command.Params) (any, error) {
	code, err := p.String("code")
	if err != nil {
		return nil, err
	}
	s.once.Do(func() {
		s.table, s.err = command.NewTable(s.catalog, nil)
	})
	if s.err != nil {
		return nil, s.err
	}

	res := ScriptResult{Executed: true, Results: []LineResult{}}
	scanner := bufio.NewScanner(strings.NewReader(code))
	scanner.Buffer(make([]byte, 0, 64*1024), len(code)+1)
	for n := 1; scanner.Scan(); n++ {
		cmd, err := protocol.ParseCommandLine(scanner.Text())
		if errors.Is(err, protocol.ErrEmptyLine) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", n, err)
		}
		commandType, params := cmd.Type, command.Params(cmd.Params)
		if params == nil {
			params = command.Params{}
		}
		if commandType == "execute_code" {
			return nil, fmt.Errorf("line %d: execute_code cannot be nested", n)
		}

		result, err := s.table.Call(ctx, commandType, params)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", n, err)
		}
		res.Results = append(res.Results, LineResult{Line: n, Type: commandType, Result: result})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return res, nil
}
