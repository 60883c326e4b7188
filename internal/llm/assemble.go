package llm

import (
	"fmt"

	"github.com/Yates-Labs/llmkit/internal/completion"
)

// groupChoices maps provider choices back to their prompts. With n completions
// per prompt, the choice reporting index i belongs to prompt i/n. Choices may
// arrive in any order; each prompt's list is ordered by index.
func groupChoices(resp *completion.RawResponse, promptCount, n int) ([][]Generation, error) {
	if resp.Model == "" {
		return nil, &ResponseError{Prompt: -1, Choice: -1, Field: "model", Reason: "missing"}
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %w: no choices for %d prompt(s)", ErrEmptyResponse, ErrResponseFormat, promptCount)
	}
	if len(resp.Missing) > 0 {
		return nil, &ResponseError{Prompt: -1, Choice: -1, Field: resp.Missing[0], Reason: "missing"}
	}

	expected := promptCount * n
	slots := make([]*completion.Choice, expected)
	for i := range resp.Choices {
		choice := &resp.Choices[i]
		if len(choice.Missing) > 0 {
			return nil, &ResponseError{Prompt: -1, Choice: i, Field: choice.Missing[0], Reason: "missing"}
		}
		if choice.Index < 0 || choice.Index >= expected {
			return nil, &ResponseError{
				Prompt: -1,
				Choice: i,
				Field:  "index",
				Reason: fmt.Sprintf("%d out of range [0, %d)", choice.Index, expected),
			}
		}
		if slots[choice.Index] != nil {
			return nil, &ResponseError{
				Prompt: choice.Index / n,
				Choice: i,
				Field:  "index",
				Reason: fmt.Sprintf("duplicate index %d", choice.Index),
			}
		}
		slots[choice.Index] = choice
	}

	generations := make([][]Generation, promptCount)
	for prompt := range generations {
		group := make([]Generation, 0, n)
		for j := 0; j < n; j++ {
			choice := slots[prompt*n+j]
			if choice == nil {
				return nil, &ResponseError{
					Prompt: prompt,
					Choice: -1,
					Field:  "choices",
					Reason: fmt.Sprintf("expected %d choice(s), index %d missing", n, prompt*n+j),
				}
			}
			group = append(group, newGeneration(choice))
		}
		generations[prompt] = group
	}
	return generations, nil
}
