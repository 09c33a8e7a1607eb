package tool

import (
	"encoding/json"
	"strings"

	"dario.cat/mergo"

	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// Invocation is a resolved tool call: the tool name, the (possibly
// template-rewritten) input text, and the configuration map built from
// the node's data.
type Invocation struct {
	Name   string
	Input  string
	Config map[string]any
}

// BuildInvocation maps a tool node's data into the configuration record
// its tool expects. Each tool name has a closed set of recognized keys;
// anything else only enters the config through data.config or the
// customParams JSON blob.
func BuildInvocation(data workflow.Data, input string) Invocation {
	name := data.String("tool", data.String("toolName", ""))
	inv := Invocation{Name: name, Input: input, Config: map[string]any{}}
	cfg := inv.Config

	switch name {
	case "web_search":
		tpl := data.String("queryTemplate", "{input}")
		inv.Input = strings.ReplaceAll(tpl, "{input}", input)
		cfg["query"] = inv.Input
		if n := data.Int("maxResults", 0); n > 0 {
			cfg["max_results"] = n
		}

	case "code_executor":
		cfg["language"] = data.String("language", "python")
		cfg["timeout"] = data.Int("timeout", 30)
		if tpl := data.String("codeTemplate", ""); tpl != "" {
			escaped := strings.ReplaceAll(input, `\`, `\\`)
			escaped = strings.ReplaceAll(escaped, `"""`, `\"\"\"`)
			inv.Input = strings.ReplaceAll(tpl, "{input}", escaped)
		}

	case "database_tool":
		if conn := data.String("connectionString", ""); conn != "" {
			cfg["connection_string"] = conn
		}
		if dbType := data.String("dbType", ""); dbType != "" {
			cfg["db_type"] = dbType
		}
		if tpl := data.String("queryTemplate", ""); tpl != "" {
			cfg["query"] = strings.ReplaceAll(tpl, "{input}", input)
		}

	case "file_processor":
		cfg["operation"] = data.String("operation", "read")

	case "image_tool":
		cfg["operation"] = data.String("operation", "analyze")

	case "ml_pipeline":
		cfg["operation"] = data.String("operation", "train")
		copyIfSet(cfg, data, "modelType", "model_type")
		copyIfSet(cfg, data, "targetColumn", "target_column")
		copyIfSet(cfg, data, "modelName", "model_name")

	case "website_generator":
		// Uses the input text directly.

	case "gis_tool":
		cfg["operation"] = data.String("operation", "info")
		copyIfSet(cfg, data, "analysisType", "analysis_type")
		copyIfSet(cfg, data, "distance", "distance")
		copyIfSet(cfg, data, "targetCrs", "target_crs")
		copyIfSet(cfg, data, "title", "title")
		copyIfSet(cfg, data, "colormap", "colormap")
		copyIfSet(cfg, data, "column", "column")
		copyIfSet(cfg, data, "how", "how")
		copyIfSet(cfg, data, "band", "band")
		copyIfSet(cfg, data, "layer", "layer")
		copyIfSet(cfg, data, "zoom", "zoom")
		copyIfSet(cfg, data, "mapType", "mapType")
		if data.Has("addMarker") {
			cfg["addMarker"] = data.Bool("addMarker", false)
		}
		copyIfSet(cfg, data, "markerLabel", "markerLabel")
		if coords := data.String("coordinates", data.String("coords", "")); coords != "" {
			inv.Input = strings.ReplaceAll(coords, "{input}", input)
		}

	case "file_search":
		cfg["source"] = data.String("source", "local")
		cfg["mode"] = data.String("mode", "filename")
		cfg["max_results"] = data.Int("maxResults", 20)
		copyIfSet(cfg, data, "roots", "roots")
		copyIfSet(cfg, data, "extensions", "extensions")

	case "email_search":
		cfg["source"] = data.String("source", "gmail")
		cfg["max_results"] = data.Int("maxResults", 20)
		copyIfSet(cfg, data, "imapServer", "imap_server")
		copyIfSet(cfg, data, "imapPort", "imap_port")
		copyIfSet(cfg, data, "imapUsername", "imap_username")
		copyIfSet(cfg, data, "imapPassword", "imap_password")

	case "project_analyzer":
		cfg["max_depth"] = data.Int("maxDepth", 4)
		cfg["max_file_size"] = data.Int("maxFileSize", 50000)
		cfg["max_files_read"] = data.Int("maxFilesRead", 20)

	case "email_sender":
		cfg["source"] = data.String("emailSource", "smtp")
		cfg["to"] = data.String("emailTo", "")
		cfg["subject"] = data.String("emailSubject", "Gennaro Workflow Result")
		copyIfSet(cfg, data, "smtpHost", "smtp_host")
		copyIfSet(cfg, data, "smtpPort", "smtp_port")
		copyIfSet(cfg, data, "smtpUsername", "smtp_username")
		copyIfSet(cfg, data, "smtpPassword", "smtp_password")
		if data.Has("smtpTls") {
			cfg["smtp_tls"] = data.Bool("smtpTls", true)
		}

	case "web_scraper":
		cfg["operation"] = data.String("operation", "extract_text")
		cfg["css_selector"] = data.String("cssSelector", "")
		cfg["timeout"] = data.Int("timeout", 15)
		cfg["user_agent"] = data.String("userAgent", "")

	case "file_manager":
		cfg["operation"] = data.String("operation", "list")
		cfg["base_dir"] = data.String("baseDir", "")
		cfg["destination"] = data.String("destination", "")
		cfg["confirm"] = data.Bool("confirm", false)
		cfg["content_source"] = data.String("contentSource", "input")

	case "http_request":
		cfg["method"] = data.String("method", "GET")
		cfg["url_template"] = data.String("urlTemplate", "{input}")
		cfg["headers"] = data.RawString("headers", "")
		cfg["body"] = data.RawString("body", "")
		cfg["auth_type"] = data.String("authType", "none")
		cfg["auth_token"] = data.String("authToken", "")
		cfg["timeout"] = data.Int("timeout", 15)

	case "text_transformer":
		cfg["operation"] = data.String("operation", "trim")
		cfg["pattern"] = data.RawString("pattern", "")
		cfg["replacement"] = data.RawString("replacement", "")
		cfg["separator"] = data.String("separator", `\n`)
		cfg["template"] = data.RawString("template", "")
		cfg["max_length"] = data.Int("maxLength", 0)

	case "notifier":
		cfg["channel"] = data.String("channel", "webhook")
		cfg["webhook_url"] = data.String("webhookUrl", "")
		cfg["bot_token"] = data.String("botToken", "")
		cfg["chat_id"] = data.String("chatId", "")
		cfg["method"] = data.String("method", "POST")
		cfg["headers"] = data.RawString("headers", "")
		cfg["timeout"] = data.Int("timeout", 10)

	case "json_parser":
		cfg["operation"] = data.String("operation", "extract")
		cfg["path"] = data.String("path", "")
		cfg["filter_field"] = data.String("filterField", "")
		cfg["filter_value"] = data.String("filterValue", "")

	case "telegram_bot":
		cfg["operation"] = data.String("operation", "send_message")
		cfg["bot_token"] = data.String("botToken", "")
		cfg["chat_id"] = data.String("chatId", "")
		cfg["parse_mode"] = data.String("parseMode", "Markdown")

	case "whatsapp":
		cfg["operation"] = data.String("operation", "send_message")
		cfg["token"] = data.String("waToken", data.String("token", ""))
		cfg["phone_number_id"] = data.String("phoneNumberId", "")
		cfg["recipient"] = data.String("recipient", "")
		cfg["template_name"] = data.String("templateName", "")

	case "pyarchinit_tool":
		cfg["operation"] = data.String("operation", "query_us")
		cfg["db_path"] = data.String("dbPath", "")
		cfg["db_type"] = data.String("dbType", "sqlite")
		cfg["sito"] = data.String("sito", "")
		cfg["area"] = data.String("area", "")
		cfg["us"] = data.String("us", "")
		cfg["custom_query"] = data.String("customQuery", "")

	case "qgis_project":
		cfg["operation"] = data.String("operation", "list_layers")
		cfg["project_path"] = data.String("projectPath", "")
		cfg["layer_name"] = data.String("layerName", "")
	}

	// Explicit config map from the legacy node format wins over built keys.
	if explicit := data.Map("config"); explicit != nil {
		_ = mergo.Merge(&cfg, explicit, mergo.WithOverride)
	}

	// customParams is a JSON object string from the UI config panel.
	if raw := data.String("customParams", ""); raw != "" {
		var custom map[string]any
		if err := json.Unmarshal([]byte(raw), &custom); err == nil {
			_ = mergo.Merge(&cfg, custom, mergo.WithOverride)
		}
	}

	inv.Config = cfg
	return inv
}

func copyIfSet(cfg map[string]any, data workflow.Data, from, to string) {
	v, ok := data[from]
	if !ok || v == nil {
		return
	}
	if s, isStr := v.(string); isStr && s == "" {
		return
	}
	cfg[to] = v
}
