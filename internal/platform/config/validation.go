package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their koanf keys, so a message names the key
// an operator would edit.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key := f.Tag.Get("koanf"); key != "" && key != "-" {
			return key
		}

		return strings.ToLower(f.Name)
	})

	return v
}

// Validate checks the whole configuration and reports every problem at
// once. The runtime refuses to start on any of them.
func (c *Config) Validate() error {
	problems, err := fieldProblems(validate.Struct(c))
	if err != nil {
		return err
	}

	return joinProblems(append(problems, c.crossFieldProblems()...))
}

// crossFieldProblems covers rules that span sections.
func (c *Config) crossFieldProblems() []string {
	var problems []string

	if c.Deployment.Store == "redis" && c.Deployment.Redis.Addr == "" {
		problems = append(problems, "deployment.redis.addr is required when deployment.store is redis")
	}

	if c.Executor.SubmitRate > 0 && c.Executor.SubmitBurst < 1 {
		problems = append(problems, "executor.submit_burst must be at least 1 when executor.submit_rate is set")
	}

	if d := c.Topology.DefaultConfig; d != "" && !slices.ContainsFunc(c.Topology.Configs, func(sc ServerConfigSection) bool {
		return sc.Name == d
	}) {
		problems = append(problems, fmt.Sprintf("topology.default_config %q is not a configured config", d))
	}

	return problems
}

// fieldProblems renders validator failures. Errors of any other kind are
// returned as they are.
func fieldProblems(err error) ([]string, error) {
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	problems := make([]string, 0, len(verrs))
	for _, e := range verrs {
		problems = append(problems, describe(e))
	}

	return problems, nil
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(problems, "\n  "))
}

// validateSection checks a value outside a full Config, such as one entry
// of a hot-reloaded applications file.
func validateSection(v any) error {
	problems, err := fieldProblems(validate.Struct(v))
	if err != nil {
		return err
	}

	return joinProblems(problems)
}

func describe(e validator.FieldError) string {
	key, p := fieldPath(e.Namespace()), e.Param()

	switch e.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		field, value, _ := strings.Cut(p, " ")
		return fmt.Sprintf("%s is required when %s is %s", key, strings.ToLower(field), value)
	case "min":
		return key + " must be at least " + p
	case "max":
		return key + " must be at most " + p
	case "oneof":
		return key + " must be one of: " + p
	case "unique":
		return key + " must not repeat " + strings.ToLower(p)
	case "hostname_port":
		return key + " must be host:port"
	default:
		return key + " failed validation: " + e.Tag()
	}
}

// fieldPath drops the root struct from a namespace:
// "Config.executor.queue_size" becomes "executor.queue_size".
func fieldPath(namespace string) string {
	if _, rest, found := strings.Cut(namespace, "."); found {
		return rest
	}

	return namespace
}
