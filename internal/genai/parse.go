package genai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	maintenance "iot-console/internal/maintenance/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// rulePayload is the wire shape of one proposed rule. Backends are loose
// about casing and operator spelling; mapping normalizes both.
type rulePayload struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Metric       string            `json:"metric"`
	Operator     string            `json:"operator"`
	Value        string            `json:"value"`
	ActionType   string            `json:"actionType"`
	ActionConfig map[string]string `json:"actionConfig,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	Category     string            `json:"category,omitempty"`
}

type maintenancePayload struct {
	ID            string `json:"id,omitempty"`
	TaskName      string `json:"taskName"`
	Description   string `json:"description,omitempty"`
	Frequency     string `json:"frequency"`
	Priority      string `json:"priority,omitempty"`
	EstimatedMins int    `json:"estimatedMins,omitempty"`
}

type safetyPayload struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Severity       string `json:"severity"`
	Category       string `json:"category,omitempty"`
	Mitigation     string `json:"mitigation,omitempty"`
	AboutReaction  string `json:"aboutReaction,omitempty"`
	RecommendedPPE string `json:"recommendedPpe,omitempty"`
}

// operatorAliases maps the spellings backends produce onto the condition
// operators the rule model accepts.
var operatorAliases = map[string]rules.Operator{
	">":                      rules.OperatorGreater,
	"<":                      rules.OperatorLess,
	"=":                      rules.OperatorEqual,
	"==":                     rules.OperatorEqual,
	"!=":                     rules.OperatorNotEqual,
	">=":                     rules.OperatorGreaterOrEqual,
	"<=":                     rules.OperatorLessOrEqual,
	"GREATER_THAN":           rules.OperatorGreater,
	"LESS_THAN":              rules.OperatorLess,
	"EQUAL":                  rules.OperatorEqual,
	"EQUALS":                 rules.OperatorEqual,
	"NOT_EQUAL":              rules.OperatorNotEqual,
	"GREATER_THAN_OR_EQUAL":  rules.OperatorGreaterOrEqual,
	"LESS_THAN_OR_EQUAL":     rules.OperatorLessOrEqual,
}

func normalizeOperator(raw string) (rules.Operator, bool) {
	op, ok := operatorAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return op, ok
}

func normalizePriority(raw string) rules.Priority {
	p := rules.Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if p.Valid() {
		return p
	}
	return ""
}

func normalizeSeverity(raw string) safety.Severity {
	s := safety.Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if s.Valid() {
		return s
	}
	return safety.SeverityMedium
}

func mapRules(payloads []rulePayload) ([]rules.GeneratedRule, error) {
	out := make([]rules.GeneratedRule, 0, len(payloads))
	for i, p := range payloads {
		if p.Name == "" || p.Metric == "" {
			continue
		}
		op, ok := normalizeOperator(p.Operator)
		if !ok {
			return nil, fmt.Errorf("genai: rule %d has unsupported operator %q", i, p.Operator)
		}
		actionType := p.ActionType
		if actionType == "" {
			actionType = "notification"
		}
		out = append(out, rules.GeneratedRule{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Condition: rules.Condition{
				Metric:   p.Metric,
				Operator: op,
				Value:    p.Value,
			},
			Action:   rules.Action{Type: actionType, Config: p.ActionConfig},
			Priority: normalizePriority(p.Priority),
			Category: rules.Category(strings.ToLower(strings.TrimSpace(p.Category))),
		})
	}
	return out, nil
}

func mapMaintenance(payloads []maintenancePayload) []maintenance.Item {
	out := make([]maintenance.Item, 0, len(payloads))
	for _, p := range payloads {
		if p.TaskName == "" {
			continue
		}
		out = append(out, maintenance.Item{
			ID:            p.ID,
			TaskName:      p.TaskName,
			Description:   p.Description,
			Frequency:     maintenance.NormalizeFrequency(p.Frequency),
			Priority:      strings.ToUpper(strings.TrimSpace(p.Priority)),
			EstimatedMins: p.EstimatedMins,
		})
	}
	return out
}

func mapSafety(payloads []safetyPayload) []safety.Precaution {
	out := make([]safety.Precaution, 0, len(payloads))
	for _, p := range payloads {
		if p.Title == "" {
			continue
		}
		out = append(out, safety.Precaution{
			ID:             p.ID,
			Title:          p.Title,
			Description:    p.Description,
			Severity:       normalizeSeverity(p.Severity),
			Category:       strings.ToLower(strings.TrimSpace(p.Category)),
			Mitigation:     p.Mitigation,
			AboutReaction:  p.AboutReaction,
			RecommendedPPE: p.RecommendedPPE,
		})
	}
	return out
}

// extractJSON pulls the first JSON array or object out of a model response,
// tolerating markdown code fences and surrounding prose.
func extractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = strings.TrimSpace(rest[:end])
		} else {
			trimmed = strings.TrimSpace(rest)
		}
	}
	start := strings.IndexAny(trimmed, "[{")
	if start < 0 {
		return "", fmt.Errorf("genai: no JSON found in response")
	}
	closer := byte(']')
	if trimmed[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(trimmed, closer)
	if end <= start {
		return "", fmt.Errorf("genai: unterminated JSON in response")
	}
	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("genai: malformed JSON in response")
	}
	return candidate, nil
}

func decodeRuleArray(raw string) ([]rulePayload, error) {
	extracted, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var payloads []rulePayload
	if err := json.Unmarshal([]byte(extracted), &payloads); err != nil {
		return nil, fmt.Errorf("genai: decode rules: %w", err)
	}
	return payloads, nil
}

func decodeMaintenanceArray(raw string) ([]maintenancePayload, error) {
	extracted, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var payloads []maintenancePayload
	if err := json.Unmarshal([]byte(extracted), &payloads); err != nil {
		return nil, fmt.Errorf("genai: decode maintenance: %w", err)
	}
	return payloads, nil
}

func decodeSafetyArray(raw string) ([]safetyPayload, error) {
	extracted, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var payloads []safetyPayload
	if err := json.Unmarshal([]byte(extracted), &payloads); err != nil {
		return nil, fmt.Errorf("genai: decode safety: %w", err)
	}
	return payloads, nil
}
