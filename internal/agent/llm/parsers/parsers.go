// Package parsers turns raw model output into the structured values the
// dialogue engine consumes. Models wrap JSON in code fences or prose often
// enough that everything here extracts defensively before unmarshalling.
package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/saleswire/server/internal/agent/model"
	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200       // limit error snippet size
)

// ParseIntent reads the single routing keyword out of the router response.
// Unknown keywords fall back to SALES so a noisy model never blocks a turn.
func ParseIntent(content string) (model.Intent, error) {
	cleaned := stripFences(clipContent(content, "intent_parser"))
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return "", errx.ExtractionParse(fmt.Errorf("empty intent response"))
	}
	word := strings.Trim(fields[0], ".,:;!*\"'`")
	if word == "" {
		return "", errx.ExtractionParse(fmt.Errorf("no keyword in intent response %q", safeSnippet(cleaned)))
	}
	return model.ParseIntent(word), nil
}

// ParseLabel reads a bare single-word classification label. The label is
// returned uppercased; callers decide what unknown labels mean.
func ParseLabel(content string) (string, error) {
	cleaned := stripFences(clipContent(content, "label_parser"))
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return "", errx.ExtractionParse(fmt.Errorf("empty label response"))
	}
	word := strings.Trim(fields[0], ".,:;!*\"'`")
	if word == "" {
		return "", errx.ExtractionParse(fmt.Errorf("no label in response %q", safeSnippet(cleaned)))
	}
	return strings.ToUpper(word), nil
}

// ParseContextDecision reads the analyzer's JSON verdict. The query type must
// be one of the known kinds; a missing confidence defaults to LOW so the
// caller treats the verdict as unusable.
func ParseContextDecision(content string) (dec *model.ContextDecision, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "context_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("context parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			dec = nil
		}
	}()

	obj, err := extractJSONObject(clipContent(content, "context_parser"))
	if err != nil {
		return nil, errx.ExtractionParse(err)
	}

	dec = &model.ContextDecision{}
	if err := json.Unmarshal([]byte(obj), dec); err != nil {
		return nil, errx.ExtractionParse(fmt.Errorf("context decision: %w", err))
	}

	dec.Kind = model.ContextKind(strings.ToUpper(strings.TrimSpace(string(dec.Kind))))
	switch dec.Kind {
	case model.ContextAcknowledgment, model.ContextClarificationQuestion,
		model.ContextFollowUp, model.ContextNewQuery, model.ContextClarification:
	default:
		return nil, errx.ExtractionParse(fmt.Errorf("unknown query_type %q", dec.Kind))
	}

	dec.Confidence = model.Confidence(strings.ToUpper(strings.TrimSpace(string(dec.Confidence))))
	switch dec.Confidence {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
	default:
		dec.Confidence = model.ConfidenceLow
	}

	if dec.InheritParams == nil {
		dec.InheritParams = []string{}
	}
	if dec.OverrideParams == nil {
		dec.OverrideParams = map[string]any{}
	}
	return dec, nil
}

// ParseParams reads the extractor's JSON object. Null values are dropped and
// whole-number floats are normalised to ints so they interpolate cleanly.
func ParseParams(content string) (params map[string]any, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "params_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("params parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			params = nil
		}
	}()

	obj, err := extractJSONObject(clipContent(content, "params_parser"))
	if err != nil {
		return nil, errx.ExtractionParse(err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, errx.ExtractionParse(fmt.Errorf("extracted params: %w", err))
	}

	params = make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			v = int(f)
		}
		params[k] = v
	}
	return params, nil
}

// --- helpers ---

// clipContent enforces the content length guard shared by all parsers.
func clipContent(content, component string) string {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", component).
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	return content
}

// stripFences removes markdown code fences around model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced top-level JSON object in s.
// Braces inside string literals do not count toward the balance.
func extractJSONObject(s string) (string, error) {
	s = stripFences(s)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in %q", safeSnippet(s))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in %q", safeSnippet(s))
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
