package coordination

import "strings"

// VoteParser extracts a cast option ID from one member's free-text
// response. Pluggable per the group coordination design; parseVoteLine
// is the one concrete parser this module ships.
type VoteParser func(response string) (optionID string, ok bool)

// parseVoteLine looks for a line of the form "vote: <option_id>"
// (case-insensitive on the "vote:" marker) anywhere in response and
// returns the trimmed option ID from the first match.
func parseVoteLine(response string) (string, bool) {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "vote:") {
			continue
		}
		id := strings.TrimSpace(line[len("vote:"):])
		id = strings.Trim(id, "\"'")
		if id != "" {
			return id, true
		}
	}
	return "", false
}

// parseAgentNameLines splits response into non-empty lines, stripping
// common bullet/numbering prefixes ("- ", "* ", "1. ", "1) ") from each,
// for the supervisor selector's member-list parsing.
func parseAgentNameLines(response string) []string {
	var names []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = stripListMarker(line)
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

func stripListMarker(line string) string {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return line[2:]
	}
	// "1. " / "1) " style numbering
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		rest := strings.TrimSpace(line[i+1:])
		return rest
	}
	return line
}
