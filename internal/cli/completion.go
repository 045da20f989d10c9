package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const completionHelp = `Generate a shell completion script for depsync.

Bash:
  source <(depsync completion bash)
  # or install permanently:
  depsync completion bash > /etc/bash_completion.d/depsync

Zsh:
  depsync completion zsh > "${fpath[1]}/_depsync"
  # compinit must be enabled; add to ~/.zshrc once if it is not:
  echo "autoload -U compinit; compinit" >> ~/.zshrc

Fish:
  depsync completion fish > ~/.config/fish/completions/depsync.fish

PowerShell:
  depsync completion powershell | Out-String | Invoke-Expression
`

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	generators := map[string]func(*cobra.Command) error{
		"bash": func(root *cobra.Command) error { return root.GenBashCompletion(os.Stdout) },
		"zsh":  func(root *cobra.Command) error { return root.GenZshCompletion(os.Stdout) },
		"fish": func(root *cobra.Command) error { return root.GenFishCompletion(os.Stdout, true) },
		"powershell": func(root *cobra.Command) error {
			return root.GenPowerShellCompletionWithDesc(os.Stdout)
		},
	}

	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		Long:                  completionHelp,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generators[args[0]](cmd.Root())
		},
	}
}
