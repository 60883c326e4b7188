package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// DisplayString renders typeName in bold followed by every parameter in
// canonical order. The output is deterministic and meant for logs, not parsing.
//
//	\x1b[1mOpenAI\x1b[0m
//	Params: {
//	    model_name: text-davinci-003
//	    ...
//	    logit_bias: {}
//	}
func (s Set) DisplayString(typeName string) string {
	var b strings.Builder

	b.WriteString(ansiBold + typeName + ansiReset + "\n")
	b.WriteString("Params: {\n")

	values := s.ToMap()
	for _, key := range canonicalKeys {
		b.WriteString(fmt.Sprintf("    %s: %s\n", key, formatValue(values[key])))
	}

	b.WriteString("}\n")
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case map[string]int:
		return formatBias(val)
	default:
		return fmt.Sprint(val)
	}
}

// formatBias renders the bias map sorted by numeric token id. An empty map is
// rendered as {} rather than omitted.
func formatBias(bias map[string]int) string {
	if len(bias) == 0 {
		return "{}"
	}

	tokens := make([]string, 0, len(bias))
	for token := range bias {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		a, errA := strconv.Atoi(tokens[i])
		b, errB := strconv.Atoi(tokens[j])
		if errA != nil || errB != nil {
			return tokens[i] < tokens[j]
		}
		return a < b
	})

	parts := make([]string, len(tokens))
	for i, token := range tokens {
		parts[i] = fmt.Sprintf("%s: %d", token, bias[token])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
