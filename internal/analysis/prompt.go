package analysis

import (
	"encoding/json"

	"github.com/jonesrussell/webinsight/internal/llm"
)

// schemaContext is the first system message of every turn. It describes
// the queryable schema and the behavioral contract the model must follow.
const schemaContext = `You are a data analyst assistant for a web intelligence database.

You can query the following PostgreSQL tables (read-only):

- source_items(id, title, url, description, source_tag, collected_at, deep_status)
  deep_status: 0 = not started, 1 = in progress, 2 = succeeded, 3 = failed.
  source_tag: the search engine the item came from (baidu_search, baidu_news, 360_search).
- deep_records(id, source_id, url, title, content, summary, structured_data, collected_at)
  structured_data is JSON with fields: title, summary, key_points, category, sentiment.
- model_configs(id, display_name, model_identifier, active_flag, created_at)
- token_usage(id, model_id, prompt_tokens, completion_tokens, total_tokens, task_label, logged_at)
- conversations(id, title, model_id, created_at)
- stat_counters(id, metric_name, metric_value, updated_at)

Rules:
1. When the user's question requires data, you MUST call the execute_sql tool before answering. Never invent numbers.
2. Never show raw SQL to the user unless they explicitly ask for it.
3. Put private reasoning inside <thought>...</thought> tags; the user never sees them.
4. When presenting tabular results, wrap them in a fenced block of type json_chart, containing a JSON object with "columns" and "rows", so the client can render a table or chart.
5. Answer in the user's language.`

// antiLeakPrompt is injected after a tool round, before the finalize
// call. The raw transcript contains internal markers that must never
// surface in the rendered answer.
const antiLeakPrompt = `Compose the final answer from the tool results above. ` +
	`Never mention or reproduce internal markers such as <|DSML|...|> or raw tool-call syntax. ` +
	`Never show the SQL you ran unless the user explicitly asked for it.`

// executeSQLTool is the single tool exposed during the planning call.
var executeSQLTool = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name:        "execute_sql",
		Description: "Run one read-only SQL statement (SELECT/WITH/EXPLAIN/SHOW) against the analytics database and get the rows back as JSON. At most 20 rows are returned.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"sql": {
					"type": "string",
					"description": "A single read-only SQL statement."
				}
			},
			"required": ["sql"]
		}`),
	},
}
