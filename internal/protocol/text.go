package protocol

import (
	"strconv"
	"strings"
)

// ParseText parses one newline-stripped line of the text grammar. It
// scans the verb and key as whitespace-separated fields but takes the
// rest of the line verbatim as the value, preserving embedded spaces,
// then peels an optional trailing "EX <n>" or "TTL <n>" clause off
// SET's value: if the last two whitespace-separated tokens of the
// remainder parse as EX/TTL and an integer, they are the TTL clause;
// otherwise the whole remainder is the value.
func ParseText(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Kind: KindUnknown}
	}

	verb := strings.ToUpper(fields[0])
	switch verb {
	case "SET":
		return parseSet(line, fields)
	case "GET":
		if len(fields) != 2 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindGet, Key: fields[1]}
	case "DEL":
		if len(fields) != 2 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindDel, Key: fields[1]}
	case "MGET":
		if len(fields) < 2 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindMget, Keys: fields[1:]}
	case "COMPACT":
		if len(fields) != 1 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindCompact}
	case "STATS":
		if len(fields) != 1 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindStats}
	case "FLUSH":
		if len(fields) != 1 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindFlush}
	default:
		return Command{Kind: KindUnknown}
	}
}

func parseSet(line string, fields []string) Command {
	if len(fields) < 3 {
		return Command{Kind: KindUnknown}
	}
	key := fields[1]

	// Remainder is everything after "SET <key> ", preserving internal spacing.
	rest := line
	for i := 0; i < 2; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return Command{Kind: KindUnknown}
		}
		rest = rest[idx+1:]
		// skip any extra separating whitespace before the next token
		rest = strings.TrimLeft(rest, " \t")
	}
	if rest == "" {
		return Command{Kind: KindUnknown}
	}

	value := rest
	ttl := 0
	if n := len(fields); n >= 4 {
		clause := strings.ToUpper(fields[n-2])
		if clause == "EX" || clause == "TTL" {
			if secs, err := strconv.Atoi(fields[n-1]); err == nil {
				ttl = secs
				// strip the trailing "<clause> <secs>" from value
				value = strings.TrimRight(value, " \t")
				value = trimTrailingClause(value, fields[n-2], fields[n-1])
			}
		}
	}

	return Command{Kind: KindSet, Key: key, Value: value, TTLSeconds: ttl}
}

// trimTrailingClause removes the literal "<clause> <secs>" suffix from
// value, along with the whitespace that separates it from the real value.
func trimTrailingClause(value, clause, secs string) string {
	suffix := clause + " " + secs
	if strings.HasSuffix(value, suffix) {
		value = value[:len(value)-len(suffix)]
		value = strings.TrimRight(value, " \t")
	}
	return value
}
