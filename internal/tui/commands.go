package tui

import "strings"

// Command is a parsed slash command such as "/stop web worker".
type Command struct {
	Name string
	Args []string
}

// commandAliases maps alternate spellings onto the names update.go handles.
var commandAliases = map[string]string{
	"/remove": "/down",
	"/rm":     "/down",
	"/up":     "/start",
	"/q":      "/quit",
}

// ParseCommand parses a slash command. The name is lowercased and aliases
// are resolved; arguments are deployment ids and keep their case, except
// the "all" keyword. Returns nil if the input is not a command.
func ParseCommand(input string) *Command {
	input = strings.TrimSpace(input)
	if input == "" || input[0] != '/' {
		return nil
	}

	parts := strings.Fields(input)
	name := strings.ToLower(parts[0])
	if alias, ok := commandAliases[name]; ok {
		name = alias
	}

	var args []string
	for _, a := range parts[1:] {
		if strings.EqualFold(a, "all") {
			a = "all"
		}
		args = append(args, a)
	}
	return &Command{Name: name, Args: args}
}
