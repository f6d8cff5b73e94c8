package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/helmcode/errfriendly/pkg/model"
)

// ErrMalformed is returned when a backend answer is not a usable explanation.
var ErrMalformed = errors.New("malformed explanation")

type rawExplanation struct {
	WhatHappened string   `json:"what_happened"`
	RootCause    string   `json:"root_cause"`
	Confidence   *float64 `json:"confidence"`
	Fixes        *struct {
		Quick      string `json:"quick"`
		Robust     string `json:"robust"`
		Preventive string `json:"preventive"`
	} `json:"fixes"`
	References []string `json:"references"`
}

var fenceRe = regexp.MustCompile("```[a-zA-Z]*\n|```")

// ParseExplanation decodes a backend answer. Unlike a best-effort parse it
// never invents content: a missing field or an out-of-range confidence is an
// error.
func ParseExplanation(raw string) (*model.AIExplanation, error) {
	cleaned := extractObject(stripFences(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	var r rawExplanation
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var missing []string
	if strings.TrimSpace(r.WhatHappened) == "" {
		missing = append(missing, "what_happened")
	}
	if strings.TrimSpace(r.RootCause) == "" {
		missing = append(missing, "root_cause")
	}
	if r.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if r.Fixes == nil {
		missing = append(missing, "fixes")
	} else {
		if strings.TrimSpace(r.Fixes.Quick) == "" {
			missing = append(missing, "fixes.quick")
		}
		if strings.TrimSpace(r.Fixes.Robust) == "" {
			missing = append(missing, "fixes.robust")
		}
		if strings.TrimSpace(r.Fixes.Preventive) == "" {
			missing = append(missing, "fixes.preventive")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}
	if c := *r.Confidence; c < 0 || c > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformed, c)
	}

	refs := make([]string, 0, len(r.References))
	for _, ref := range r.References {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return &model.AIExplanation{
		WhatHappened: strings.TrimSpace(r.WhatHappened),
		RootCause:    strings.TrimSpace(r.RootCause),
		Confidence:   *r.Confidence,
		Fixes: model.Fixes{
			Quick:      strings.TrimSpace(r.Fixes.Quick),
			Robust:     strings.TrimSpace(r.Fixes.Robust),
			Preventive: strings.TrimSpace(r.Fixes.Preventive),
		},
		References: refs,
	}, nil
}

// stripFences removes markdown code fences such as ```json ... ``` so JSON can be parsed
func stripFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// extractObject drops any prose a model put around the JSON object.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
