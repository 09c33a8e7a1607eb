package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	httpMaxOutput = 10_000
	userAgent     = "Gennaro/1.0"
)

// HTTPRequestTool calls REST API endpoints: GET, POST, PUT, DELETE, PATCH
// with headers, body and authentication.
type HTTPRequestTool struct{}

func init() {
	Register(&HTTPRequestTool{})
}

func (*HTTPRequestTool) Name() string { return "http_request" }

func (*HTTPRequestTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	method := strings.ToUpper(cfgString(config, "method", "GET"))
	urlTemplate := cfgString(config, "url_template", "{input}")
	headersRaw := cfgString(config, "headers", "")
	bodyRaw := cfgString(config, "body", "")
	authType := cfgString(config, "auth_type", "none")
	authToken := cfgString(config, "auth_token", "")
	timeout := cfgInt(config, "timeout", 15)

	url := strings.ReplaceAll(urlTemplate, "{input}", strings.TrimSpace(input))
	if url == "" {
		url = strings.TrimSpace(input)
	}
	if url == "" {
		return "[http_request] No URL provided.", nil
	}

	headers := map[string]string{"User-Agent": userAgent}
	mergeJSONHeaders(headers, headersRaw)

	switch {
	case authType == "bearer" && authToken != "":
		headers["Authorization"] = "Bearer " + authToken
	case authType == "basic" && authToken != "":
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(authToken))
	}

	client := resty.New().
		SetTimeout(time.Duration(timeout) * time.Second)

	req := client.R().SetContext(ctx).SetHeaders(headers)

	if bodyRaw != "" && (method == "POST" || method == "PUT" || method == "PATCH") {
		body := strings.ReplaceAll(bodyRaw, "{input}", strings.TrimSpace(input))
		var parsed map[string]any
		if err := json.Unmarshal([]byte(body), &parsed); err == nil {
			req.SetHeader("Content-Type", "application/json")
			req.SetBody(parsed)
		} else {
			if _, ok := headers["Content-Type"]; !ok {
				req.SetHeader("Content-Type", "text/plain")
			}
			req.SetBody(body)
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("[http_request] Error: %v", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s` → **%d** %s\n\n", method, url, resp.StatusCode(), resp.Status())

	ct := resp.Header().Get("Content-Type")
	fmt.Fprintf(&b, "Content-Type: %s\n\n", ct)

	text := string(resp.Body())
	if strings.Contains(ct, "json") {
		var pretty any
		if err := json.Unmarshal(resp.Body(), &pretty); err == nil {
			if formatted, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				text = string(formatted)
			}
		}
	}
	if len(text) > httpMaxOutput {
		text = text[:httpMaxOutput] + fmt.Sprintf("\n\n... (truncated, %d total chars)", len(text))
	}
	b.WriteString(text)

	return b.String(), nil
}

func mergeJSONHeaders(headers map[string]string, raw string) {
	if raw == "" {
		return
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return
	}
	for k, v := range parsed {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
}
