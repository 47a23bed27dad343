package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/Shybit1/drone-swarm-comms/pkg/simulation"
)

// PromptForParameters resolves every scenario parameter, prompting
// interactively unless SWARM_SKIP_PROMPTS=true, in which case values come
// from SWARM_<NAME> environment variables or manifest defaults.
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, param := range params {
		value, err := resolveParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		result[param.Name] = value
	}
	return result, nil
}

func resolveParameter(param simulation.Parameter) (interface{}, error) {
	envKey := "SWARM_" + strings.ToUpper(param.Name)

	if os.Getenv("SWARM_SKIP_PROMPTS") == "true" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return parseEnvValue(envValue, param)
		}
		if param.Default != nil {
			return param.Default, nil
		}
		if param.Required {
			return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
		}
		return nil, nil
	}

	// Environment variables become the prompt default when present.
	if envValue := os.Getenv(envKey); envValue != "" {
		if parsed, err := parseEnvValue(envValue, param); err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case "integer":
		return promptInteger(param)
	case "float":
		return promptFloat(param)
	case "string":
		return promptString(param)
	case "boolean":
		return promptBoolean(param)
	case "duration":
		return promptDuration(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func parseEnvValue(value string, param simulation.Parameter) (interface{}, error) {
	switch param.Type {
	case "integer":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "string":
		return value, nil
	case "boolean":
		return strconv.ParseBool(value)
	case "duration":
		return time.ParseDuration(value)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func promptInteger(param simulation.Parameter) (int, error) {
	defaultStr := ""
	switch v := param.Default.(type) {
	case int:
		defaultStr = strconv.Itoa(v)
	case float64:
		defaultStr = strconv.Itoa(int(v))
	}

	var result string
	prompt := &survey.Input{Message: param.Description, Default: defaultStr}
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(result)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if param.Min != nil && value < toInt(param.Min) {
		return 0, fmt.Errorf("value must be at least %d", toInt(param.Min))
	}
	if param.Max != nil && value > toInt(param.Max) {
		return 0, fmt.Errorf("value must be at most %d", toInt(param.Max))
	}
	return value, nil
}

func promptFloat(param simulation.Parameter) (float64, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	var result string
	prompt := &survey.Input{Message: param.Description, Default: defaultStr}
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	if param.Min != nil && value < toFloat64(param.Min) {
		return 0, fmt.Errorf("value must be at least %g", toFloat64(param.Min))
	}
	if param.Max != nil && value > toFloat64(param.Max) {
		return 0, fmt.Errorf("value must be at most %g", toFloat64(param.Max))
	}
	return value, nil
}

func promptString(param simulation.Parameter) (string, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	if len(param.Options) > 0 {
		var result string
		prompt := &survey.Select{
			Message: param.Description,
			Options: param.Options,
			Default: defaultStr,
		}
		if err := survey.AskOne(prompt, &result); err != nil {
			return "", err
		}
		return result, nil
	}

	var result string
	prompt := &survey.Input{Message: param.Description, Default: defaultStr}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func promptBoolean(param simulation.Parameter) (bool, error) {
	defaultVal := false
	if v, ok := param.Default.(bool); ok {
		defaultVal = v
	}

	var result bool
	prompt := &survey.Confirm{Message: param.Description, Default: defaultVal}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func promptDuration(param simulation.Parameter) (time.Duration, error) {
	defaultStr := ""
	switch v := param.Default.(type) {
	case time.Duration:
		defaultStr = v.String()
	case string:
		defaultStr = v
	}

	var result string
	prompt := &survey.Input{Message: param.Description + " (e.g. 90s, 5m)", Default: defaultStr}
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := time.ParseDuration(result)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return value, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
