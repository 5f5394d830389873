package processor

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to all generated environment variable names.
const EnvPrefix = "FILEFLOW"

// ParamType enumerates the value types a processor parameter may declare.
type ParamType string

const (
	StringParam ParamType = "string"
	IntParam    ParamType = "int"
	FloatParam  ParamType = "float"
	BoolParam   ParamType = "bool"
)

// Param declares a single configuration parameter of a processor. Parameters
// are resolved by the configuration layer from defaults, environment
// variables, and the config file, then applied through Configure.
type Param struct {
	Name     string
	Type     ParamType
	Default  interface{}
	Help     string
	Choices  []string
	Required bool
	// EnvVar overrides the generated environment variable name.
	EnvVar string
}

// Configurable is implemented by processors that accept configuration
// parameters.
type Configurable interface {
	Params() []Param
	Configure(values map[string]interface{}) error
}

// Namespace derives the configuration namespace for a processor from its
// name: lowercased, with spaces and underscores collapsed to hyphens.
func Namespace(p Processor) string {
	ns := strings.ToLower(p.Name())
	ns = strings.ReplaceAll(ns, " ", "-")
	ns = strings.ReplaceAll(ns, "_", "-")
	return ns
}

// envName returns the environment variable consulted for a parameter, e.g.
// FILEFLOW_CHECKSUM_ALGORITHM for namespace "checksum", param "algorithm".
func envName(ns string, param Param) string {
	if param.EnvVar != "" {
		return param.EnvVar
	}
	up := strings.ToUpper(strings.ReplaceAll(ns, "-", "_"))
	return fmt.Sprintf("%s_%s_%s", EnvPrefix, up, strings.ToUpper(param.Name))
}

// ResolveParams computes the effective parameter values for a processor.
// Precedence, lowest to highest: declared default, environment variable,
// explicit override (typically from the config file). Environment values
// that fail type conversion are logged and skipped rather than aborting
// configuration. Missing required parameters produce an error.
func ResolveParams(p Processor, overrides map[string]interface{}) (map[string]interface{}, error) {
	c, ok := p.(Configurable)
	if !ok {
		return nil, nil
	}

	ns := Namespace(p)
	values := make(map[string]interface{})
	for _, param := range c.Params() {
		if param.Default != nil {
			values[param.Name] = param.Default
		}
		if raw, found := os.LookupEnv(envName(ns, param)); found {
			v, err := convertParamValue(param, raw)
			if err != nil {
				log.Printf("Invalid environment variable %s=%q: %v", envName(ns, param), raw, err)
			} else {
				values[param.Name] = v
			}
		}
		if ov, found := overrides[param.Name]; found {
			values[param.Name] = ov
		}
		if param.Required {
			if _, found := values[param.Name]; !found {
				return nil, fmt.Errorf("parameter %s.%s is required", ns, param.Name)
			}
		}
		if len(param.Choices) > 0 {
			if v, found := values[param.Name]; found {
				if !validChoice(param.Choices, v) {
					return nil, fmt.Errorf("parameter %s.%s: %v is not one of %v", ns, param.Name, v, param.Choices)
				}
			}
		}
	}
	return values, nil
}

// ConfigureProcessor resolves and applies parameter values to a processor.
// Processors that are not Configurable are left untouched.
func ConfigureProcessor(p Processor, overrides map[string]interface{}) error {
	c, ok := p.(Configurable)
	if !ok {
		return nil
	}
	values, err := ResolveParams(p, overrides)
	if err != nil {
		return err
	}
	return c.Configure(values)
}

func convertParamValue(param Param, raw string) (interface{}, error) {
	switch param.Type {
	case BoolParam:
		switch strings.ToLower(raw) {
		case "true", "1", "yes", "on":
			return true, nil
		default:
			return false, nil
		}
	case IntParam:
		return strconv.Atoi(raw)
	case FloatParam:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

func validChoice(choices []string, v interface{}) bool {
	s := fmt.Sprintf("%v", v)
	for _, c := range choices {
		if c == s {
			return true
		}
	}
	return false
}
