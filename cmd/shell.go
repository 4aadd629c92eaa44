package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spigell/scratchfs/internal/logger"
	"github.com/spigell/scratchfs/internal/offload"
	"github.com/spigell/scratchfs/internal/vfs"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptLs      = "ls"
	PromptRead    = "read"
	PromptWrite   = "write"
	PromptEdit    = "edit"
	PromptRm      = "rm"
	PromptGrep    = "grep"
	PromptGlob    = "glob"
	PromptOffload = "offload"
	PromptExport  = "export"
	PromptExit    = "exit"
)

var errExit = errors.New("exit requested")

var opPrompt = promptui.Select{
	Label: "Operation",
	Items: []string{
		PromptLs, PromptRead, PromptWrite, PromptEdit, PromptRm,
		PromptGrep, PromptGlob, PromptOffload, PromptExport, PromptExit,
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Explore a local scratch filesystem interactively",
	Run: func(_ *cobra.Command, _ []string) {
		shell()
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// shell runs a local REPL over one throwaway session. Useful for poking at
// the exact output an agent would see without standing up the server.
func shell() {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	sessionID := uuid.NewString()
	fs := vfs.New(sessionID)
	policy := offload.NewPolicy(config.Offload.TokenLimit, config.Offload.CharsPerToken, zlog)

	zlog.Info("starting the interactive shell",
		zap.String("session_id", sessionID),
		zap.Int("offload_threshold_chars", policy.Threshold()),
	)

	for {
		_, op, err := opPrompt.Run()
		if err != nil {
			zlog.Fatal("exiting", zap.Error(err))
		}

		if err := runShellOp(op, fs, policy); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			// Operation failures are normal output in the shell, exactly as
			// an agent would receive them.
			fmt.Printf("error: %s\n", err)
		}
	}
}

func runShellOp(op string, fs *vfs.Filesystem, policy *offload.Policy) error {
	switch op {
	case PromptLs:
		path, err := ask("path", "/")
		if err != nil {
			return err
		}
		entries, err := fs.Ls(path)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir {
				fmt.Printf("%s\n", entry.Path)
				continue
			}
			fmt.Printf("%s\t%d\t%s\n", entry.Path, entry.Size, entry.ModifiedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	case PromptRead:
		path, err := ask("file path", "")
		if err != nil {
			return err
		}
		offset, err := askInt("offset", 0)
		if err != nil {
			return err
		}
		limit, err := askInt("limit", vfs.DefaultReadLimit)
		if err != nil {
			return err
		}
		content, err := fs.Read(path, offset, limit)
		if err != nil {
			return err
		}
		fmt.Println(content)
		return nil
	case PromptWrite:
		path, err := ask("file path", "")
		if err != nil {
			return err
		}
		content, err := ask("content (\\n for newlines)", "")
		if err != nil {
			return err
		}
		written, err := fs.Write(path, strings.ReplaceAll(content, "\\n", "\n"))
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", written)
		return nil
	case PromptEdit:
		path, err := ask("file path", "")
		if err != nil {
			return err
		}
		oldString, err := ask("old string", "")
		if err != nil {
			return err
		}
		newString, err := ask("new string", "")
		if err != nil {
			return err
		}
		all, err := ask("replace all (true/false)", "false")
		if err != nil {
			return err
		}
		result, err := fs.Edit(path, oldString, newString, strings.EqualFold(all, "true"))
		if err != nil {
			return err
		}
		fmt.Printf("edited %s, replaced %d occurrence(s)\n", result.Path, result.Occurrences)
		return nil
	case PromptRm:
		path, err := ask("file path", "")
		if err != nil {
			return err
		}
		removed, err := fs.Rm(path)
		if err != nil {
			return err
		}
		fmt.Printf("removed %s\n", removed)
		return nil
	case PromptGrep:
		pattern, err := ask("pattern", "")
		if err != nil {
			return err
		}
		path, err := ask("path", "/")
		if err != nil {
			return err
		}
		mode, err := ask("output mode", vfs.GrepFilesWithMatches)
		if err != nil {
			return err
		}
		result, err := fs.Grep(pattern, path, "", mode)
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	case PromptGlob:
		pattern, err := ask("pattern", "**")
		if err != nil {
			return err
		}
		path, err := ask("path", "/")
		if err != nil {
			return err
		}
		paths, err := fs.Glob(pattern, path)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	case PromptOffload:
		id, err := ask("tool call id", "")
		if err != nil {
			return err
		}
		content, err := ask("content (\\n for newlines)", "")
		if err != nil {
			return err
		}
		processed, offloaded := policy.ProcessToolResult(fs, id, strings.ReplaceAll(content, "\\n", "\n"))
		fmt.Printf("offloaded: %t\n%s\n", offloaded, processed)
		return nil
	case PromptExport:
		pretty, err := json.MarshalIndent(fs.Export(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid operation: %s", op)
	}
}

func ask(label, fallback string) (string, error) {
	prompt := promptui.Prompt{Label: label, Default: fallback}
	return prompt.Run()
}

func askInt(label string, fallback int) (int, error) {
	raw, err := ask(label, strconv.Itoa(fallback))
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
