package retrieval

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardize(t *testing.T) {
	tests := map[string]string{
		"Weather API":        "weather_api",
		"  Movie  Search ":   "_movie_search_",
		"Get-Forecast (v2)!": "getforecast_v2",
		"already_ok_123":     "already_ok_123",
	}
	for in, want := range tests {
		assert.Equal(t, want, Standardize(in), in)
	}
}

func TestChangeName(t *testing.T) {
	for _, reserved := range []string{"from", "class", "return", "false", "true", "id", "and"} {
		assert.Equal(t, "is_"+reserved, ChangeName(reserved))
	}
	assert.Equal(t, "city", ChangeName("city"))
}

func TestFunctionNameKeepsLast64(t *testing.T) {
	assert.Equal(t, "forecast_for_weather", FunctionName("forecast", "weather"))

	long := FunctionName(strings.Repeat("a", 60), "tool")
	assert.Len(t, long, 64)
	assert.True(t, strings.HasSuffix(long, "_for_tool"))
	assert.Equal(t, strings.Repeat("a", 55)+"_for_tool", long, "the leading characters are dropped")
}

func writeToolBenchTSV(t *testing.T, docs ...map[string]any) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("docid\tdocument_content\n")
	for i, d := range docs {
		data, err := json.Marshal(d)
		require.NoError(t, err)
		b.WriteString(string(rune('0' + i)))
		b.WriteString("\t\"")
		b.WriteString(strings.ReplaceAll(string(data), `"`, `""`))
		b.WriteString("\"\n")
	}
	path := filepath.Join(t.TempDir(), "corpus.tsv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func TestLoadToolBenchDocuments(t *testing.T) {
	path := writeToolBenchTSV(t,
		map[string]any{
			"category_name":   "Weather",
			"tool_name":       "Open Weather",
			"api_name":        "Current Conditions",
			"api_description": "Current Conditions for a city",
			"required_parameters": []map[string]any{
				{"name": "City", "type": "STRING", "description": "city name", "default": "Paris"},
			},
			"optional_parameters": []map[string]any{
				{"name": "id", "type": "NUMBER", "description": "station", "default": ""},
			},
		},
		map[string]any{"category_name": "Movies", "tool_name": "Cinema", "api_name": "from", "api_description": ""},
	)

	docs, err := LoadToolBenchDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs[0].ToolDoc()
	assert.Equal(t, "open_weather", doc.ToolName)
	assert.Equal(t, "current_conditions", doc.APIName)
	assert.Equal(t, "Weather", doc.CategoryName)
	assert.Equal(t, "current_conditions_for_open_weather", doc.CallSpec.Name)
	assert.Contains(t, doc.CallSpec.Description, "current_conditions_for_open_weather for a city")

	props := doc.CallSpec.Parameters["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "city name", "example_value": "Paris"}, props["city"])
	assert.Equal(t, map[string]any{"type": "integer", "description": "station"}, props["is_id"])
	assert.Equal(t, []string{"city"}, doc.CallSpec.Parameters["required"])
	assert.Equal(t, []string{"is_id"}, doc.CallSpec.Parameters["optional"])

	second := docs[1].ToolDoc()
	assert.Equal(t, "is_from_for_cinema", second.CallSpec.Name)
	assert.Equal(t, `This is the subfunction for tool "cinema", you can use this tool.`, second.CallSpec.Description)

	corpus := BuildToolBenchCorpus(docs)
	assert.Equal(t, 2, corpus.Len())
	assert.True(t, strings.HasPrefix(corpus.Entries()[0], "Weather, Open Weather, Current Conditions, "))
}

func TestLoadToolBenchMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tsv")
	require.NoError(t, os.WriteFile(path, []byte("docid\tother\n1\tx\n"), 0644))

	_, err := LoadToolBenchDocuments(path)
	assert.ErrorContains(t, err, "document_content")
}

func TestLoadAPIBankAPIs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("b_add_alarm.json", `{"name":"AddAlarm","description":"Set an alarm","input_parameters":{"time":{"type":"str","description":"alarm time"},"token":{"type":"str","description":"user token"}}}`)
	write("a_query_stock.json", `{"name":"QueryStock","description":"Stock price","input_parameters":{"symbol":{"type":"str","description":"ticker"},"days":{"type":"int","description":"history"}}}`)
	write("notes.txt", "ignored")

	apis, err := LoadAPIBankAPIs(dir)
	require.NoError(t, err)
	require.Len(t, apis, 2)
	assert.Equal(t, "QueryStock", apis[0].Name, "files sorted by name")

	spec := apis[0].Spec()
	assert.Equal(t, []string{"days", "symbol"}, spec.Parameters["required"])
	props := spec.Parameters["properties"].(map[string]any)
	assert.Equal(t, "integer", props["days"].(map[string]any)["type"])

	corpus := BuildAPIBankCorpus(apis)
	require.Equal(t, 2, corpus.Len())
	assert.Equal(t, "QueryStock", corpus.Docs()[corpus.Entries()[0]].ToolName)
}
