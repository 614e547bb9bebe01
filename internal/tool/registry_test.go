package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Descriptor {
	return Descriptor{
		Name:         name,
		Description:  "echoes the question",
		ReturnDirect: true,
		Invoke: func(_ context.Context, in Input) (Output, error) {
			return Output{Text: name + ":" + in.Question}, nil
		},
	}
}

func newTestRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, n := range names {
		require.NoError(t, r.Register(echoTool(n)))
	}
	return r
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t, "chart")
	err := r.Register(echoTool("chart"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Len(t, r.List(), 1)
}

func TestRegisterValidatesDescriptor(t *testing.T) {
	r := NewRegistry()

	bad := echoTool("Chart Tool")
	assert.ErrorIs(t, r.Register(bad), ErrInvalidTool)

	noDesc := echoTool("query")
	noDesc.Description = " "
	assert.ErrorIs(t, r.Register(noDesc), ErrInvalidTool)

	noInvoke := echoTool("query")
	noInvoke.Invoke = nil
	assert.ErrorIs(t, r.Register(noInvoke), ErrInvalidTool)

	badSchema := echoTool("query")
	badSchema.InputSchema = []byte(`{"type": 12}`)
	assert.ErrorIs(t, r.Register(badSchema), ErrInvalidTool)
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	r := newTestRegistry(t, "general_info_report", "statistics_report", "chart", "query")
	assert.Equal(t, []string{"general_info_report", "statistics_report", "chart", "query"}, r.Names())
	assert.Equal(t, "chart", r.List()[2].Name)
}

func TestInvokePlainTextInput(t *testing.T) {
	r := newTestRegistry(t, "chart")
	out, err := r.Invoke(context.Background(), "chart", `"histograma da idade"`)
	require.NoError(t, err)
	assert.Equal(t, "chart:histograma da idade", out.Text)
}

func TestInvokeJSONInput(t *testing.T) {
	r := newTestRegistry(t, "query")
	out, err := r.Invoke(context.Background(), "query", `{"question": "df.mean('idade')"}`)
	require.NoError(t, err)
	assert.Equal(t, "query:df.mean('idade')", out.Text)
}

func TestDecodeInputSchemaViolation(t *testing.T) {
	r := newTestRegistry(t, "query")

	_, err := r.DecodeInput("query", "  ")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "query", se.Tool)
	assert.Equal(t, "/question", se.Location)

	_, err = r.DecodeInput("query", `{"question": 3}`)
	require.ErrorAs(t, err, &se)
}

func TestUnknownToolSuggestions(t *testing.T) {
	r := newTestRegistry(t, "general_info_report", "statistics_report", "chart", "query")

	_, err := r.Invoke(context.Background(), "chrat", "x")
	var ue *UnknownToolError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "chrat", ue.Name)
	assert.Contains(t, ue.Suggestions, "chart")
	assert.Contains(t, err.Error(), "did you mean")

	assert.Equal(t, []string{"statistics_report"}, r.Suggest("statistics_reprt", 3))
	assert.Empty(t, r.Suggest("zzzzzzzzzz", 3))
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "abc", unquote(` "abc" `))
	assert.Equal(t, "abc", unquote("`abc`"))
	assert.Equal(t, `"abc`, unquote(`"abc`))
}
