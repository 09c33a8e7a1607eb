package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/stringutil"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// runConditionNode evaluates the node's predicate and blocks the
// outgoing edge of the branch not taken. The input passes through.
func (e *Engine) runConditionNode(node *workflow.Node, input string) string {
	result := evaluateCondition(node.Data, input)
	for _, edge := range e.graph.Outgoing(node.ID) {
		label := strings.ToLower(strings.TrimSpace(edge.Label))
		if result && label == "false" {
			e.state.blockEdge(edge.ID)
		} else if !result && label == "true" {
			e.state.blockEdge(edge.ID)
		}
	}
	return input
}

// evaluateCondition applies the configured predicate kind to the input.
// Unknown kinds default to true.
func evaluateCondition(data workflow.Data, input string) bool {
	condType := data.String("conditionType", "contains")
	condValue := data.RawString("conditionValue", "")

	switch condType {
	case "contains":
		return strings.Contains(strings.ToLower(input), strings.ToLower(condValue))
	case "not_contains":
		return !strings.Contains(strings.ToLower(input), strings.ToLower(condValue))
	case "score_threshold":
		score, ok := stringutil.LastNumber(input)
		if !ok {
			return false
		}
		threshold := 7.0
		if condValue != "" {
			if f, err := strconv.ParseFloat(condValue, 64); err == nil {
				threshold = f
			}
		}
		switch data.String("operator", "gte") {
		case "gt":
			return score > threshold
		case "lte":
			return score <= threshold
		case "lt":
			return score < threshold
		case "eq":
			return score == threshold
		default:
			return score >= threshold
		}
	case "keyword":
		head := strings.ToUpper(input)
		if len(head) > 500 {
			head = head[:500]
		}
		return strings.Contains(head, strings.ToUpper(condValue))
	case "regex":
		re, err := regexp.Compile(condValue)
		if err != nil {
			return false
		}
		return re.MatchString(input)
	case "length_above":
		n, _ := strconv.Atoi(condValue)
		return len(input) > n
	case "length_below":
		n := 1000
		if condValue != "" {
			if i, err := strconv.Atoi(condValue); err == nil {
				n = i
			}
		}
		return len(input) < n
	}
	return true
}

// runSwitchNode matches edge labels against the input and blocks every
// non-matching labeled edge. Unlabeled edges are treated as default;
// default edges are blocked only when a labeled case matched.
func (e *Engine) runSwitchNode(node *workflow.Node, input string) string {
	switchType := node.Data.String("switchType", "keyword")

	matched := "default"
	for _, edge := range e.graph.Outgoing(node.ID) {
		label := strings.ToLower(strings.TrimSpace(edge.Label))
		if label == "" || label == "default" {
			continue
		}
		switch switchType {
		case "keyword":
			if strings.Contains(strings.ToLower(input), label) {
				matched = label
			}
		case "regex":
			re, err := regexp.Compile("(?i)" + label)
			if err == nil && re.MatchString(input) {
				matched = label
			}
		case "score":
			score, ok := stringutil.LastNumber(input)
			if !ok {
				continue
			}
			threshold, err := strconv.ParseFloat(label, 64)
			if err == nil && score >= threshold {
				matched = label
			}
		}
		if matched != "default" {
			break
		}
	}

	for _, edge := range e.graph.Outgoing(node.ID) {
		label := strings.ToLower(strings.TrimSpace(edge.Label))
		switch {
		case label == "":
			// Unlabeled edges follow the default path.
		case label == "default":
			if matched != "default" {
				e.state.blockEdge(edge.ID)
			}
		case label != matched:
			e.state.blockEdge(edge.ID)
		}
	}
	return input
}

var validatorJSONRe = regexp.MustCompile(`\{[^}]*"valid"[^}]*\}`)

type validatorVerdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
	Score  int    `json:"score"`
}

// runValidatorNode asks a model to judge the input against the node's
// criteria, blocks the pass or fail edge, and appends a validation
// report to the passed-through input.
func (e *Engine) runValidatorNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	model := node.Data.String("model", defaultValidatorModel)
	validationPrompt := node.Data.String("validationPrompt", "")
	strictness := node.Data.Int("strictness", 7)
	includeContext := node.Data.Bool("includeContext", false)

	cleanInput := stringutil.ElideArtifacts(input)

	var sys strings.Builder
	sys.WriteString("You are a strict quality validator. Analyze the input and determine if it meets the criteria.\n")
	fmt.Fprintf(&sys, "Strictness level: %d/10 (10 = extremely strict, 1 = very lenient).\n", strictness)
	if validationPrompt != "" {
		fmt.Fprintf(&sys, "\nValidation criteria:\n%s\n", validationPrompt)
	}
	sys.WriteString("\nRespond ONLY with valid JSON in this exact format:\n")
	sys.WriteString(`{"valid": true/false, "reason": "brief explanation", "score": 0-10}` + "\n")
	sys.WriteString("No other text before or after the JSON.")

	userMsg := "Validate the following content:\n\n" + cleanInput
	if includeContext {
		type nodeSummary struct {
			ID    string `json:"id"`
			Type  string `json:"type"`
			Label string `json:"label"`
		}
		summaries := make([]nodeSummary, 0, len(e.def.Nodes))
		for _, n := range e.def.Nodes {
			summaries = append(summaries, nodeSummary{
				ID:    n.ID,
				Type:  string(n.Type),
				Label: n.Data.String("label", ""),
			})
		}
		if ctxJSON, err := json.Marshal(summaries); err == nil {
			userMsg += fmt.Sprintf("\n\n[Workflow context: %s]", ctxJSON)
		}
	}

	if e.agents == nil {
		return "", fmt.Errorf("no agent factory configured")
	}
	agent, err := e.agents.NewAgent(model, sys.String(), 0.1, 256)
	if err != nil {
		return "", err
	}
	raw, _, err := e.consumeStream(ctx, node.ID, agent, []llm.Message{{Role: llm.RoleUser, Content: userMsg}})
	if err != nil {
		return "", err
	}

	verdict := parseValidatorVerdict(raw)

	for _, edge := range e.graph.Outgoing(node.ID) {
		label := strings.ToLower(strings.TrimSpace(edge.Label))
		if verdict.Valid && label == "fail" {
			e.state.blockEdge(edge.ID)
		} else if !verdict.Valid && label == "pass" {
			e.state.blockEdge(edge.ID)
		}
	}

	outcome := "FAIL"
	if verdict.Valid {
		outcome = "PASS"
	}
	report := fmt.Sprintf("\n\n---\n**Validation:** %s (score: %d/10)\n**Reason:** %s",
		outcome, verdict.Score, verdict.Reason)
	return input + report, nil
}

// parseValidatorVerdict extracts the verdict object from a possibly
// wrapped model response, repairing sloppy JSON when needed.
func parseValidatorVerdict(raw string) validatorVerdict {
	verdict := validatorVerdict{Reason: "Could not parse validator response"}
	match := validatorJSONRe.FindString(raw)
	if match == "" {
		return verdict
	}
	candidate := match
	if err := json.Unmarshal([]byte(candidate), &verdict); err == nil {
		return verdict
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return validatorVerdict{Reason: "Could not parse validator response"}
	}
	fallback := validatorVerdict{Reason: "Could not parse validator response"}
	if err := json.Unmarshal([]byte(repaired), &fallback); err != nil {
		return validatorVerdict{Reason: "Could not parse validator response"}
	}
	return fallback
}
