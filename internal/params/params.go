// Package params defines the typed parameter set sent with every completion
// request, along with its validation, canonical map form, persistence and
// display rendering.
package params

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"

	"k8s.io/klog/v2"
)

var (
	ErrConfig = errors.New("invalid configuration")
	ErrIO     = errors.New("parameter document i/o failed")
)

// Canonical document keys, in the order they are written.
const (
	KeyModelName        = "model_name"
	KeyModel            = "model"
	KeyTemperature      = "temperature"
	KeyMaxTokens        = "max_tokens"
	KeyTopP             = "top_p"
	KeyFrequencyPenalty = "frequency_penalty"
	KeyPresencePenalty  = "presence_penalty"
	KeyN                = "n"
	KeyBestOf           = "best_of"
	KeyLogitBias        = "logit_bias"
)

var canonicalKeys = []string{
	KeyModelName,
	KeyModel,
	KeyTemperature,
	KeyMaxTokens,
	KeyTopP,
	KeyFrequencyPenalty,
	KeyPresencePenalty,
	KeyN,
	KeyBestOf,
	KeyLogitBias,
}

// ProviderDefaultMaxTokens lets the provider pick the completion length.
const ProviderDefaultMaxTokens = -1

// Set holds the parameters of a completion request.
// A Set is a value; use Clone before handing it to code that may mutate LogitBias.
type Set struct {
	// Model identifies the completion model (e.g., "text-davinci-003")
	Model string

	// Temperature controls randomness (0.0 = deterministic, 2.0 = very random)
	Temperature float64

	// MaxTokens limits the completion length (-1 = provider default)
	MaxTokens int

	// TopP is the nucleus sampling mass
	TopP float64

	FrequencyPenalty float64
	PresencePenalty  float64

	// N is the number of completions returned per prompt
	N int

	// BestOf is the number of server-side candidates; must be >= N
	BestOf int

	// LogitBias maps token IDs to an additive bias in [-100, 100]
	LogitBias map[string]int
}

// Defaults returns the parameter set used when a key is not configured.
func Defaults() Set {
	return Set{
		Model:            "text-davinci-003",
		Temperature:      0.7,
		MaxTokens:        256,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		N:                1,
		BestOf:           1,
		LogitBias:        map[string]int{},
	}
}

// Keys returns the canonical key order used by ToMap, Save and DisplayString.
func Keys() []string {
	return append([]string(nil), canonicalKeys...)
}

// Option tunes how FromConfig treats its input.
type Option func(*options)

type options struct {
	lenient bool
	logger  klog.Logger
}

// Lenient makes FromConfig drop unknown keys instead of failing.
func Lenient() Option {
	return func(o *options) { o.lenient = true }
}

// WithLogger sets the logger that reports dropped keys. Defaults to klog.Background().
func WithLogger(logger klog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Strict makes FromConfig fail on unknown keys. This is the default.
func Strict() Option {
	return func(o *options) { o.lenient = false }
}

// FromConfig builds a validated Set from a configuration map.
// Missing keys take their value from Defaults.
func FromConfig(cfg map[string]any, opts ...Option) (Set, error) {
	return Defaults().apply(cfg, opts...)
}

// Merge returns a new Set with cfg applied on top of s. s is left unchanged.
func (s Set) Merge(cfg map[string]any, opts ...Option) (Set, error) {
	return s.Clone().apply(cfg, opts...)
}

func (s Set) apply(cfg map[string]any, opts ...Option) (Set, error) {
	o := options{logger: klog.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	// Iterate in sorted order so the first reported error is stable.
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var modelName, model string
	var modelSet, modelNameSet bool
	for _, key := range keys {
		value := cfg[key]
		var err error
		switch key {
		case KeyModelName:
			modelName, err = toString(value)
			modelNameSet = true
		case KeyModel:
			model, err = toString(value)
			modelSet = true
		case KeyTemperature:
			s.Temperature, err = toFloat(value)
		case KeyMaxTokens:
			s.MaxTokens, err = toInt(value)
		case KeyTopP:
			s.TopP, err = toFloat(value)
		case KeyFrequencyPenalty:
			s.FrequencyPenalty, err = toFloat(value)
		case KeyPresencePenalty:
			s.PresencePenalty, err = toFloat(value)
		case KeyN:
			s.N, err = toInt(value)
		case KeyBestOf:
			s.BestOf, err = toInt(value)
		case KeyLogitBias:
			s.LogitBias, err = toLogitBias(value)
		default:
			if !o.lenient {
				return Set{}, fmt.Errorf("%w: unknown key %q", ErrConfig, key)
			}
			o.logger.V(2).Info("Dropping unknown parameter key", "key", key)
			continue
		}
		if err != nil {
			return Set{}, fmt.Errorf("%w: %s: %v", ErrConfig, key, err)
		}
	}

	// A present key is applied even when empty so Validate can reject it.
	switch {
	case modelSet && modelNameSet && model != modelName:
		return Set{}, fmt.Errorf("%w: %s %q and %s %q disagree", ErrConfig, KeyModel, model, KeyModelName, modelName)
	case modelSet:
		s.Model = model
	case modelNameSet:
		s.Model = modelName
	}

	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Validate checks every field against its declared range.
func (s Set) Validate() error {
	switch {
	case s.Model == "":
		return fmt.Errorf("%w: %s must not be empty", ErrConfig, KeyModel)
	case s.Temperature < 0 || s.Temperature > 2:
		return fmt.Errorf("%w: %s %v out of range [0, 2]", ErrConfig, KeyTemperature, s.Temperature)
	case s.MaxTokens < ProviderDefaultMaxTokens || s.MaxTokens == 0:
		return fmt.Errorf("%w: %s %d must be -1 or positive", ErrConfig, KeyMaxTokens, s.MaxTokens)
	case s.TopP < 0 || s.TopP > 1:
		return fmt.Errorf("%w: %s %v out of range [0, 1]", ErrConfig, KeyTopP, s.TopP)
	case s.FrequencyPenalty < -2 || s.FrequencyPenalty > 2:
		return fmt.Errorf("%w: %s %v out of range [-2, 2]", ErrConfig, KeyFrequencyPenalty, s.FrequencyPenalty)
	case s.PresencePenalty < -2 || s.PresencePenalty > 2:
		return fmt.Errorf("%w: %s %v out of range [-2, 2]", ErrConfig, KeyPresencePenalty, s.PresencePenalty)
	case s.N < 1:
		return fmt.Errorf("%w: %s %d must be at least 1", ErrConfig, KeyN, s.N)
	case s.BestOf < s.N:
		return fmt.Errorf("%w: %s %d must be >= %s %d", ErrConfig, KeyBestOf, s.BestOf, KeyN, s.N)
	}

	for token, bias := range s.LogitBias {
		if id, err := strconv.Atoi(token); err != nil || id < 0 {
			return fmt.Errorf("%w: %s token %q is not a token id", ErrConfig, KeyLogitBias, token)
		}
		if bias < -100 || bias > 100 {
			return fmt.Errorf("%w: %s[%s] %d out of range [-100, 100]", ErrConfig, KeyLogitBias, token, bias)
		}
	}
	return nil
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	c := s
	c.LogitBias = make(map[string]int, len(s.LogitBias))
	maps.Copy(c.LogitBias, s.LogitBias)
	return c
}

// Equal reports whether both sets hold the same values.
func (s Set) Equal(other Set) bool {
	if s.Model != other.Model ||
		s.Temperature != other.Temperature ||
		s.MaxTokens != other.MaxTokens ||
		s.TopP != other.TopP ||
		s.FrequencyPenalty != other.FrequencyPenalty ||
		s.PresencePenalty != other.PresencePenalty ||
		s.N != other.N ||
		s.BestOf != other.BestOf {
		return false
	}
	return maps.Equal(s.LogitBias, other.LogitBias)
}

// ToMap returns every field keyed by its document name. Both model keys carry
// the configured model. Iterate Keys() for the canonical order.
func (s Set) ToMap() map[string]any {
	bias := make(map[string]int, len(s.LogitBias))
	maps.Copy(bias, s.LogitBias)

	return map[string]any{
		KeyModelName:        s.Model,
		KeyModel:            s.Model,
		KeyTemperature:      s.Temperature,
		KeyMaxTokens:        s.MaxTokens,
		KeyTopP:             s.TopP,
		KeyFrequencyPenalty: s.FrequencyPenalty,
		KeyPresencePenalty:  s.PresencePenalty,
		KeyN:                s.N,
		KeyBestOf:           s.BestOf,
		KeyLogitBias:        bias,
	}
}
