package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"mnemo/internal/errs"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [context-id]",
		Short: "Chat interactively with persistent memory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTTY() {
				return errors.New("chat needs an interactive terminal; use `mnemo serve` for programmatic access")
			}

			strategyName := viper.GetString("strategy")
			if !cmd.Flags().Changed("strategy") {
				name, err := selectStrategy()
				if err != nil {
					return err
				}
				strategyName = name
			}

			container, err := buildContainer(strategyName)
			if err != nil {
				return err
			}

			contextID := ""
			if len(args) > 0 {
				contextID = args[0]
			}
			contextID, err = ensureContext(container, contextID)
			if err != nil {
				return err
			}

			return runChatLoop(cmd, container, contextID)
		},
	}
	return cmd
}

func selectStrategy() (string, error) {
	prompt := promptui.Select{
		Label: "Memory strategy",
		Items: []string{"plain", "summary", "retrieval"},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("select strategy: %w", err)
	}
	return choice, nil
}

// ensureContext resolves the context to chat in: the given id is created on
// demand, an empty id opens a picker over existing contexts plus a
// create-new entry. Id collisions on create loop back to the name prompt.
func ensureContext(container *Container, id string) (string, error) {
	if id != "" {
		if container.Manager.Exists(id) {
			return id, nil
		}
		if err := container.Manager.Create(id); err != nil {
			return "", err
		}
		return id, nil
	}

	const createNew = "<new context>"
	ids, err := container.Manager.List()
	if err != nil {
		return "", err
	}

	choice := createNew
	if len(ids) > 0 {
		prompt := promptui.Select{
			Label: "Context",
			Items: append([]string{createNew}, ids...),
		}
		if _, choice, err = prompt.Run(); err != nil {
			return "", fmt.Errorf("select context: %w", err)
		}
	}
	if choice != createNew {
		return choice, nil
	}

	for {
		prompt := promptui.Prompt{
			Label: "New context id",
			Validate: func(input string) error {
				if strings.TrimSpace(input) == "" {
					return errors.New("id must not be empty")
				}
				return nil
			},
		}
		newID, err := prompt.Run()
		if err != nil {
			return "", fmt.Errorf("read context id: %w", err)
		}
		newID = strings.TrimSpace(newID)
		if err := container.Manager.Create(newID); err != nil {
			if errors.Is(err, errs.ErrAlreadyExists) {
				fmt.Println(yellow("That id is taken, pick another."))
				continue
			}
			return "", err
		}
		return newID, nil
	}
}

func runChatLoop(cmd *cobra.Command, container *Container, contextID string) error {
	fmt.Printf("%s  context %s, %s strategy\n", bold("mnemo"), bold(contextID), container.Manager.Strategy().Name())
	fmt.Println(gray("Type a message and press Enter. /new starts a fresh context, /help lists commands."))
	fmt.Println()

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(homeDir, ".mnemo", "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readline.NewCancelableStdin(os.Stdin),
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(input) == 0 {
				fmt.Println("\nGoodbye!")
				return nil
			}
			continue
		} else if err == io.EOF {
			fmt.Println("\nGoodbye!")
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch input {
		case "/exit", "exit", "quit":
			fmt.Println("Goodbye!")
			return nil
		case "/help":
			printChatHelp()
			continue
		case "/new":
			newID, err := ensureContext(container, "")
			if err != nil {
				fmt.Println(red("Error: " + err.Error()))
				continue
			}
			contextID = newID
			fmt.Printf("Switched to context %s\n\n", bold(contextID))
			continue
		}

		fmt.Println(gray("Thinking..."))
		result, err := container.Manager.RunTurn(cmd.Context(), contextID, input)
		if err != nil {
			fmt.Println(red("Error: " + err.Error()))
			fmt.Println(gray("The turn was not recorded; try again."))
			continue
		}

		if result.Blocked {
			fmt.Printf("\n%s\n\n", yellow(result.Reply))
		} else {
			fmt.Printf("\n%s\n\n", renderReply(result.Reply))
		}
		fmt.Println(gray(fmt.Sprintf("~%d tokens sent", result.PromptTokens)))
	}
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /new   switch to another context (or create one)")
	fmt.Println("  /help  show this help")
	fmt.Println("  /exit  leave the chat")
	fmt.Println()
}

// renderReply renders model output as terminal markdown, sized to the
// terminal when one is attached.
func renderReply(content string) string {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w - 4
		if width > 120 {
			width = 120
		}
	}
	rendered := markdown.Render(content, width, 2)
	return green(strings.TrimRight(string(rendered), "\n"))
}
