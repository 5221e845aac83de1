package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/petchat/internal/prompts"
)

var promptsShowText bool

var promptsCmd = &cobra.Command{
	Use:   "prompts [id]",
	Short: "List the built-in prompt texts",
	Long: `List the prompts the relay sends to models or returns as fallbacks.
With an id, print that prompt's latest text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prompts.DefaultRegistry()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			p, err := reg.GetLatest(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, p.Content)
			return nil
		}

		fmt.Fprintln(out, sectionStyle.Render("Prompts"))
		for _, id := range reg.List() {
			p, err := reg.GetLatest(id)
			if err != nil {
				return err
			}
			line := labelStyle.Width(22).Render(id) + valueStyle.Render(fmt.Sprintf("v%s  %s", p.Version, p.Description))
			if len(p.Tags) > 0 {
				line += labelStyle.UnsetWidth().Render(" [" + strings.Join(p.Tags, ", ") + "]")
			}
			fmt.Fprintln(out, line)
			if promptsShowText {
				fmt.Fprintln(out, indent(p.Content, "    "))
			}
		}
		return nil
	},
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	promptsCmd.Flags().BoolVar(&promptsShowText, "text", false, "also print each prompt's text")
	rootCmd.AddCommand(promptsCmd)
}
