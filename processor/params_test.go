package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configurableDouble records what Configure receives.
type configurableDouble struct {
	name     string
	params   []Param
	received map[string]interface{}
}

func (c *configurableDouble) Name() string                  { return c.name }
func (c *configurableDouble) SupportedExtensions() []string { return []string{".t"} }
func (c *configurableDouble) Params() []Param               { return c.params }
func (c *configurableDouble) Configure(values map[string]interface{}) error {
	c.received = values
	return nil
}
func (c *configurableDouble) Process(ctx context.Context, path string, chainCtx map[string]interface{}) (*Result, error) {
	return &Result{Success: true}, nil
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "image-resize", Namespace(&configurableDouble{name: "Image_Resize"}))
	assert.Equal(t, "my-proc", Namespace(&configurableDouble{name: "My Proc"}))
	assert.Equal(t, "checksum", Namespace(&configurableDouble{name: "checksum"}))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "FILEFLOW_IMAGE_RESIZE_QUALITY", envName("image-resize", Param{Name: "quality"}))
	assert.Equal(t, "CUSTOM_VAR", envName("whatever", Param{Name: "quality", EnvVar: "CUSTOM_VAR"}))
}

func TestResolveParamsPrecedence(t *testing.T) {
	p := &configurableDouble{
		name: "demo",
		params: []Param{
			{Name: "quality", Type: IntParam, Default: 80},
			{Name: "label", Type: StringParam, Default: "plain"},
		},
	}

	// Default only.
	values, err := ResolveParams(p, nil)
	require.NoError(t, err)
	assert.Equal(t, 80, values["quality"])

	// Environment beats default.
	t.Setenv("FILEFLOW_DEMO_QUALITY", "55")
	values, err = ResolveParams(p, nil)
	require.NoError(t, err)
	assert.Equal(t, 55, values["quality"])

	// Explicit override beats environment.
	values, err = ResolveParams(p, map[string]interface{}{"quality": 90})
	require.NoError(t, err)
	assert.Equal(t, 90, values["quality"])
	assert.Equal(t, "plain", values["label"])
}

func TestResolveParamsBadEnvValueSkipped(t *testing.T) {
	p := &configurableDouble{
		name:   "demo",
		params: []Param{{Name: "quality", Type: IntParam, Default: 80}},
	}
	t.Setenv("FILEFLOW_DEMO_QUALITY", "not-a-number")

	values, err := ResolveParams(p, nil)
	require.NoError(t, err)
	assert.Equal(t, 80, values["quality"])
}

func TestResolveParamsRequired(t *testing.T) {
	p := &configurableDouble{
		name:   "demo",
		params: []Param{{Name: "token", Type: StringParam, Required: true}},
	}

	_, err := ResolveParams(p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demo.token is required")

	values, err := ResolveParams(p, map[string]interface{}{"token": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", values["token"])
}

func TestResolveParamsChoices(t *testing.T) {
	p := &configurableDouble{
		name: "demo",
		params: []Param{{
			Name:    "mode",
			Type:    StringParam,
			Default: "fast",
			Choices: []string{"fast", "slow"},
		}},
	}

	_, err := ResolveParams(p, map[string]interface{}{"mode": "medium"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not one of")

	values, err := ResolveParams(p, map[string]interface{}{"mode": "slow"})
	require.NoError(t, err)
	assert.Equal(t, "slow", values["mode"])
}

func TestConvertParamValue(t *testing.T) {
	for _, raw := range []string{"true", "1", "yes", "on", "TRUE"} {
		v, err := convertParamValue(Param{Type: BoolParam}, raw)
		require.NoError(t, err)
		assert.Equal(t, true, v, "raw=%q", raw)
	}
	v, err := convertParamValue(Param{Type: BoolParam}, "off")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = convertParamValue(Param{Type: FloatParam}, "2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	_, err = convertParamValue(Param{Type: IntParam}, "x")
	assert.Error(t, err)
}

func TestConfigureProcessor(t *testing.T) {
	p := &configurableDouble{
		name:   "demo",
		params: []Param{{Name: "quality", Type: IntParam, Default: 80}},
	}
	require.NoError(t, ConfigureProcessor(p, map[string]interface{}{"quality": 42}))
	assert.Equal(t, 42, p.received["quality"])

	// Non-configurable processors are left untouched.
	assert.NoError(t, ConfigureProcessor(bareProcessor{}, map[string]interface{}{"ignored": true}))
}
