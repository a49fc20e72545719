// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/fastjsonl/config"
	"github.com/cardinalhq/fastjsonl/jsonvalue"
	"github.com/cardinalhq/fastjsonl/schema"
)

const testSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseTableFile(t *testing.T) {
	s, err := parseTableFile([]byte(`
columns:
  - name: id
    type: int64
  - name: name
    type: string
  - name: ok
    type: bool
`))
	require.NoError(t, err)
	require.Equal(t, 3, s.NumFields())
	assert.Equal(t, arrow.PrimitiveTypes.Int64, s.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.String, s.Field(1).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, s.Field(2).Type)

	_, err = parseTableFile([]byte("columns: ["))
	assert.Error(t, err)

	_, err = parseTableFile([]byte("columns:\n  - name: x\n    type: decimal\n"))
	assert.Error(t, err)
}

func TestRecordCount(t *testing.T) {
	assert.Equal(t, 0, recordCount(nil))
	assert.Equal(t, 1, recordCount([]byte("{}")))
	assert.Equal(t, 2, recordCount([]byte("{}\n{}\n")))
	assert.Equal(t, 3, recordCount([]byte("{}\n{}\n{}")))
}

func TestRunCount(t *testing.T) {
	path := writeFile(t, t.TempDir(), "in.jsonl", "line1\nline2\nline3\naaa\nsomething\n")
	var out bytes.Buffer
	require.NoError(t, runCount(context.Background(), &out, path))
	assert.Equal(t, "5\n", out.String())
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", testSchema)
	good := writeFile(t, dir, "good.jsonl", "{\"id\": 1}\n{\"id\": 2, \"name\": \"b\"}\n")
	bad := writeFile(t, dir, "bad.jsonl", "{\"id\": 1}\n{\"name\": \"b\"}\n")

	var out bytes.Buffer
	require.NoError(t, runValidate(context.Background(), &out, config.DefaultConfig(), good, schemaPath))
	assert.Contains(t, out.String(), "2 records valid")

	err := runValidate(context.Background(), &out, config.DefaultConfig(), bad, schemaPath)
	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.Line)
	assert.Equal(t, "/id", ve.Path.String())

	_, err = readSchema(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestRunConvert(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", testSchema)
	input := writeFile(t, dir, "in.jsonl", "{\"id\": 1, \"name\": \"a\"}\n{\"id\": 2}\n")

	cfg := config.DefaultConfig()
	cfg.Engine.SchemaCacheTTL = 0

	for _, name := range []string{"out.parquet", "out.arrow", "out.csv"} {
		t.Run(name, func(t *testing.T) {
			outPath := filepath.Join(dir, name)
			var out bytes.Buffer
			err := runConvert(context.Background(), &out, cfg, convertOptions{
				input:      input,
				schemaPath: schemaPath,
				outPath:    outPath,
				tables:     tableFlags{table: "id:int64,name:string"},
			})
			require.NoError(t, err)
			assert.Contains(t, out.String(), "wrote 2 rows, 2 columns")

			st, err := os.Stat(outPath)
			require.NoError(t, err)
			assert.Positive(t, st.Size())
		})
	}

	csv, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a\n2,\n", string(csv))
}

func TestRunConvertFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", testSchema)
	input := writeFile(t, dir, "in.jsonl", "{\"id\": 1}\n{\"id\": 2\n")
	outPath := filepath.Join(dir, "out.parquet")

	err := runConvert(context.Background(), &bytes.Buffer{}, config.DefaultConfig(), convertOptions{
		input:      input,
		schemaPath: schemaPath,
		outPath:    outPath,
		tables:     tableFlags{table: "id:int64"},
	})
	var pe *jsonvalue.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))

	err = runConvert(context.Background(), &bytes.Buffer{}, config.DefaultConfig(), convertOptions{
		input:      input,
		schemaPath: schemaPath,
		outPath:    outPath,
		format:     "xlsx",
		tables:     tableFlags{table: "id:int64"},
	})
	assert.Error(t, err)
}

func TestRunStats(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", testSchema)
	input := writeFile(t, dir, "in.jsonl", "{\"id\": 1, \"name\": \"a\"}\n{\"id\": 3}\n")
	tableFile := writeFile(t, dir, "table.yaml", "columns:\n  - name: id\n    type: int64\n  - name: name\n    type: string\n")

	cfg := config.DefaultConfig()
	cfg.Engine.SchemaCacheTTL = 1e9

	var out bytes.Buffer
	require.NoError(t, runStats(context.Background(), &out, cfg, input, schemaPath, &tableFlags{tableFile: tableFile}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"id", "int64", "2", "0", "2"}, strings.Fields(lines[1])[:5])
	assert.Equal(t, []string{"name", "utf8", "2", "1", "1"}, strings.Fields(lines[2])[:5])
}

func TestRunProbe(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", testSchema)
	one := writeFile(t, dir, "one.jsonl", "{\"id\": 9}\n")
	two := writeFile(t, dir, "two.jsonl", "{\"id\": 9}\n{\"id\": 10}\n")
	tables := &tableFlags{table: "id:int64"}

	var out bytes.Buffer
	require.NoError(t, runProbe(context.Background(), &out, config.DefaultConfig(), "", schemaPath, tables))
	assert.True(t, strings.HasPrefix(out.String(), "rows: 0\n"))

	out.Reset()
	require.NoError(t, runProbe(context.Background(), &out, config.DefaultConfig(), one, schemaPath, tables))
	assert.True(t, strings.HasPrefix(out.String(), "rows: 1\n"))

	assert.Error(t, runProbe(context.Background(), &out, config.DefaultConfig(), two, schemaPath, tables))
}

func TestSetupLoggingFanout(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "log.json")
	closer, err := setupLogging(true, path)
	require.NoError(t, err)

	slog.Debug("hello", "k", "v")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"invocation":"`+invocationID+`"`)
}

func TestRootCommandCount(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Chdir(t.TempDir())

	path := writeFile(t, ".", "in.jsonl", "a\nb\n")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"count", "-i", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "2\n", out.String())
	require.NotNil(t, cfg)
}
