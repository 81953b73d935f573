package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/514-labs/moosestack/engine/schema"
	"github.com/514-labs/moosestack/engine/workflow"
	"github.com/spf13/cobra"
)

type taskSummary struct {
	Workflow  string        `json:"workflow"`
	Task      string        `json:"task"`
	Kind      string        `json:"kind"`
	OnCancel  bool          `json:"on_cancel"`
	InputType string        `json:"input_type,omitempty"`
	Schema    schema.Schema `json:"schema,omitempty"`
}

// WorkflowsCmd lists the workflows and tasks the worker can execute.
func WorkflowsCmd(registry workflow.Registry) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List registered workflows and their tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if registry == nil {
				return fmt.Errorf("no workflow registry configured")
			}
			summaries, err := summarizeTasks(registry)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(summaries)
			case "table":
				return writeTaskTable(out, summaries)
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (json, table)")
	return cmd
}

func summarizeTasks(registry workflow.Registry) ([]taskSummary, error) {
	var out []taskSummary
	for _, wf := range registry.Workflows() {
		for _, def := range wf.GetTasks() {
			summary := taskSummary{
				Workflow: wf.Name,
				Task:     def.Name,
				Kind:     "async",
				OnCancel: def.HasOnCancel(),
			}
			if def.Run.IsBlocking() {
				summary.Kind = "blocking"
			}
			if def.Input != nil {
				doc, err := def.Input.JSONSchema()
				if err != nil {
					return nil, fmt.Errorf("failed to describe input of task %s: %w", def.Name, err)
				}
				summary.InputType = def.Input.Name()
				summary.Schema = doc
			}
			out = append(out, summary)
		}
	}
	return out, nil
}

func writeTaskTable(out io.Writer, summaries []taskSummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKFLOW\tTASK\tKIND\tON CANCEL\tINPUT")
	for _, s := range summaries {
		input := s.InputType
		if input == "" {
			input = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.Workflow, s.Task, s.Kind, s.OnCancel, input)
	}
	return w.Flush()
}
