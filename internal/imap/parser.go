package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandLine is one parsed IMAP command: a mandatory tag, an upper-cased
// verb, and its arguments. Literal is set when the line ends in a literal
// length spec ({n} or {n+}) rather than a final plain argument; the
// connection supervisor must read Literal.Octets raw bytes from the stream
// before the command is complete.
type CommandLine struct {
	Tag     string
	Verb    string
	Args    []string
	Literal *LiteralSpec
}

// LiteralSpec describes a pending IMAP literal argument.
type LiteralSpec struct {
	Octets  int
	NonSync bool // true for {n+}, which requires no "+ " continuation prompt
}

// ParseLine tokenizes one decoded command line (tag SP verb (SP argument)*)
// per spec section 4.3. A literal is always the final token on its logical
// line for every command this engine implements (APPEND's message body,
// AUTHENTICATE's initial response); the caller is responsible for reading
// Literal.Octets bytes and appending the result as the final argument
// before dispatching.
func ParseLine(line string) (*CommandLine, error) {
	line = strings.TrimRight(line, "\r\n")
	tokens, literal, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) < 2 {
		return nil, fmt.Errorf("imap: malformed command line %q", line)
	}
	return &CommandLine{
		Tag:     tokens[0],
		Verb:    strings.ToUpper(tokens[1]),
		Args:    tokens[2:],
		Literal: literal,
	}, nil
}

// AppendLiteral appends a completed literal's contents as the command
// line's final argument.
func (c *CommandLine) AppendLiteral(data string) {
	c.Args = append(c.Args, data)
	c.Literal = nil
}

func tokenize(line string) ([]string, *LiteralSpec, error) {
	var tokens []string
	i, n := 0, len(line)

	for i < n {
		for i < n && line[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}

		switch {
		case line[i] == '"':
			tok, next, err := scanQuoted(line, i)
			if err != nil {
				return nil, nil, err
			}
			tokens = append(tokens, tok)
			i = next

		case line[i] == '{':
			end := strings.IndexByte(line[i:], '}')
			if end < 0 {
				return nil, nil, fmt.Errorf("imap: malformed literal in %q", line)
			}
			end += i
			if end+1 != n {
				return nil, nil, fmt.Errorf("imap: literal must end the command line in %q", line)
			}
			spec := line[i+1 : end]
			nonSync := strings.HasSuffix(spec, "+")
			spec = strings.TrimSuffix(spec, "+")
			octets, err := strconv.Atoi(spec)
			if err != nil || octets < 0 {
				return nil, nil, fmt.Errorf("imap: invalid literal length %q", spec)
			}
			return tokens, &LiteralSpec{Octets: octets, NonSync: nonSync}, nil

		default:
			j := i
			for j < n && line[j] != ' ' {
				j++
			}
			tokens = append(tokens, line[i:j])
			i = j
		}
	}
	return tokens, nil, nil
}

func scanQuoted(line string, start int) (string, int, error) {
	var sb strings.Builder
	i, n := start+1, len(line)
	for i < n && line[i] != '"' {
		if line[i] == '\\' && i+1 < n {
			sb.WriteByte(line[i+1])
			i += 2
			continue
		}
		sb.WriteByte(line[i])
		i++
	}
	if i >= n {
		return "", 0, fmt.Errorf("imap: unterminated quoted string in %q", line)
	}
	return sb.String(), i + 1, nil
}
