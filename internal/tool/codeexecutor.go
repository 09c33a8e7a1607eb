package tool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// CodeExecutorTool runs a script via the local interpreter for the
// configured language and captures stdout/stderr. The script is written
// to a temp file and executed with a hard timeout.
type CodeExecutorTool struct{}

func init() {
	Register(&CodeExecutorTool{})
}

func (*CodeExecutorTool) Name() string { return "code_executor" }

var codeFenceRe = regexp.MustCompile("(?s)```(?:python|bash|sh|javascript|js)?\\s*\\n(.*?)```")

// interpreters maps a language to the command and file suffix used to run it.
var interpreters = map[string]struct {
	cmd    []string
	suffix string
}{
	"python":     {cmd: []string{"python3"}, suffix: ".py"},
	"bash":       {cmd: []string{"bash"}, suffix: ".sh"},
	"sh":         {cmd: []string{"sh"}, suffix: ".sh"},
	"javascript": {cmd: []string{"node"}, suffix: ".js"},
	"node":       {cmd: []string{"node"}, suffix: ".js"},
}

func (t *CodeExecutorTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	language := cfgString(config, "language", "python")
	timeout := cfgInt(config, "timeout", 30)

	code := extractCode(input)
	if strings.TrimSpace(code) == "" {
		return "No code to execute.", nil
	}

	interp, ok := interpreters[strings.ToLower(language)]
	if !ok {
		return fmt.Sprintf("[code_executor] Unsupported language: %s", language), nil
	}

	tmp, err := os.CreateTemp("", "gennaro_exec_*"+interp.suffix)
	if err != nil {
		return "", fmt.Errorf("failed to create temp script: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.WriteString(code); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write temp script: %w", err)
	}
	_ = tmp.Close()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	args := append(interp.cmd[1:], tmp.Name())
	cmd := exec.CommandContext(runCtx, interp.cmd[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Execution timed out after %ds", timeout), nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var parts []string
	if out := stdout.String(); out != "" {
		parts = append(parts, "Output:\n"+out)
	}
	if errs := stderr.String(); errs != "" {
		parts = append(parts, "Errors:\n"+errs)
	}
	if runErr != nil && stderr.Len() == 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n%v", runErr))
	}
	if len(parts) == 0 {
		return "Code executed successfully (no output).", nil
	}
	return strings.Join(parts, "\n"), nil
}

// extractCode pulls the body out of a markdown code fence if present.
func extractCode(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
