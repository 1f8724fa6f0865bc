package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"fieldsync/internal/models"
	"fieldsync/internal/push"
)

// parseLocator splits collection/RecordType/id
func parseLocator(s string) (models.Locator, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return models.Locator{}, fmt.Errorf("record %q must look like collection/RecordType/id", s)
	}
	return models.Locator{Collection: parts[0], RecordType: parts[1], RecordID: parts[2]}, nil
}

// fieldResult is what get and set print
type fieldResult struct {
	Record string      `json:"record" yaml:"record"`
	Field  string      `json:"field" yaml:"field"`
	Value  interface{} `json:"value" yaml:"value"`
}

func printResult(w io.Writer, format string, result fieldResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		out, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "text", "":
		_, err := fmt.Fprintln(w, models.FormatValue(result.Value))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func newGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "get <collection/RecordType/id> <field>",
		Short:   "Print the current value of a field",
		Example: "  fieldctl get game/Player/7 score",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseLocator(args[0])
			if err != nil {
				return err
			}

			value, err := opts.client().ReadField(cmd.Context(), loc, args[1])
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), opts.output, fieldResult{Record: loc.Path(), Field: args[1], Value: value})
		},
	}
}

func newSetCmd(opts *globalOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set <collection/RecordType/id> <field> <value>",
		Short: "Write a field and print the stored value",
		Long: `Write a field and print the stored value.

The value is sent as JSON when it parses as JSON, so 15 and true keep their
types. Pass --raw to always send a string.`,
		Example: "  fieldctl set game/Player/7 score 15",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseLocator(args[0])
			if err != nil {
				return err
			}

			var value interface{} = args[2]
			if !raw {
				var decoded interface{}
				if json.Unmarshal([]byte(args[2]), &decoded) == nil && decoded != nil {
					value = decoded
				}
			}

			stored, err := opts.client().WriteField(cmd.Context(), loc, args[1], value)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), opts.output, fieldResult{Record: loc.Path(), Field: args[1], Value: stored})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Send the value as a string")
	return cmd
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:     "watch <collection/RecordType/id> <field>",
		Short:   "Print every pushed change of a field until interrupted",
		Example: "  fieldctl watch game/Player/7 score --count 1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseLocator(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			seen := 0
			err = opts.client().WatchField(ctx, loc, args[1], func(msg push.Message) error {
				if err := printResult(cmd.OutOrStdout(), opts.output, fieldResult{Record: loc.Path(), Field: args[1], Value: msg.Value}); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					return errWatchDone
				}
				return nil
			})
			if errors.Is(err, errWatchDone) || ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many changes (0 watches forever)")
	return cmd
}

var errWatchDone = errors.New("watch done")
