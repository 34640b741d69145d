// Package commands implements the tally CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tallyhq-io/tally-client/pkg/tally"
	"github.com/tallyhq-io/tally-client/pkg/tallyclient"
)

// Output formats.
const (
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// createClient builds a client from the effective CLI configuration:
// flags, environment, and the persisted config file, in that order.
func createClient() (tally.Client, error) {
	config := &tally.Config{
		BaseURL:          viper.GetString("server"),
		AccessToken:      viper.GetString("token"),
		Keyring:          NewViperKeyring(),
		NotificationSink: newStderrSink(),
	}

	if viper.GetBool("verbose") {
		config.Logger = newStderrLogger()
		config.Debug = true
	}

	return tallyclient.New(config)
}

// newStderrSink routes client notifications to stderr so they never mix
// with command output on stdout.
func newStderrSink() tally.NotificationSink {
	if viper.GetBool("quiet") {
		return nil
	}

	return tally.SinkFunc(func(n tally.Notification) {
		_, _ = fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", n.Type, n.Title, n.Message)
	})
}

// renderBody prints a raw response body in the requested output format.
// Table output falls back to pretty-printed JSON because response shapes
// are opaque to the CLI.
func renderBody(body []byte) error {
	if len(body) == 0 {
		return nil
	}

	var decoded interface{}

	err := json.Unmarshal(body, &decoded)
	if err != nil {
		// Not JSON; print as-is.
		_, _ = os.Stdout.Write(body)
		_, _ = os.Stdout.WriteString("\n")

		return nil
	}

	switch viper.GetString("output") {
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		err := encoder.Encode(decoded)
		if err != nil {
			return fmt.Errorf("encoding response to YAML: %w", err)
		}

		return nil
	default:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(decoded)
		if err != nil {
			return fmt.Errorf("encoding response to JSON: %w", err)
		}

		return nil
	}
}

// renderKeyValues prints a two-column table, or the structured formats
// when requested.
func renderKeyValues(pairs map[string]string) error {
	switch viper.GetString("output") {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(pairs)
		if err != nil {
			return fmt.Errorf("encoding to JSON: %w", err)
		}

		return nil
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		err := encoder.Encode(pairs)
		if err != nil {
			return fmt.Errorf("encoding to YAML: %w", err)
		}

		return nil
	default:
		keys := make([]string, 0, len(pairs))
		for key := range pairs {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Key", "Value")

		for _, key := range keys {
			_ = table.Append([]string{key, pairs[key]})
		}

		_ = table.Render()

		return nil
	}
}

// structuredOutput reports whether the user asked for json or yaml.
func structuredOutput() bool {
	output := viper.GetString("output")

	return output == OutputFormatJSON || output == OutputFormatYAML
}

// stderrLogger implements tally.Logger for verbose CLI runs.
type stderrLogger struct{}

func newStderrLogger() tally.Logger {
	return stderrLogger{}
}

func (stderrLogger) Debug(msg string, fields map[string]interface{}) { logLine("DEBUG", msg, fields) }
func (stderrLogger) Info(msg string, fields map[string]interface{})  { logLine("INFO", msg, fields) }
func (stderrLogger) Warn(msg string, fields map[string]interface{})  { logLine("WARN", msg, fields) }
func (stderrLogger) Error(msg string, fields map[string]interface{}) { logLine("ERROR", msg, fields) }

func logLine(level, msg string, fields map[string]interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s", level, msg)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		_, _ = fmt.Fprintf(os.Stderr, " %s=%v", key, fields[key])
	}

	_, _ = fmt.Fprintln(os.Stderr)
}
